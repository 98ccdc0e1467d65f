package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/pion/rtp"
)

// RTSPConnector is the production Connector backed by gortsplib, configured
// for RTSP-over-TCP with buffer size 1 to minimise latency, as required by
// the stream manager's capture-handle setup.
type RTSPConnector struct{}

func NewRTSPConnector() *RTSPConnector { return &RTSPConnector{} }

func (c *RTSPConnector) newClient() *gortsplib.Client {
	return &gortsplib.Client{
		Transport:      transportPtr(gortsplib.TransportTCP),
		ReadBufferSize: 1,
	}
}

func transportPtr(t gortsplib.Transport) *gortsplib.Transport { return &t }

func (c *RTSPConnector) Probe(ctx context.Context, rtspURL string) ([]byte, int, int, error) {
	u, err := base.ParseURL(rtspURL)
	if err != nil {
		return nil, 0, 0, err
	}

	client := c.newClient()
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return nil, 0, 0, err
	}
	defer client.Close()

	desc, _, err := client.Describe(u)
	if err != nil {
		return nil, 0, 0, err
	}
	if err := client.SetupAll(desc.BaseURL, desc.Medias); err != nil {
		return nil, 0, 0, err
	}

	frameCh := make(chan []byte, 1)
	registerFrameCallback(client, desc, frameCh)

	if _, err := client.Play(nil); err != nil {
		return nil, 0, 0, err
	}

	select {
	case frame := <-frameCh:
		w, h := resolutionFromMedias(desc.Medias, frame)
		return frame, w, h, nil
	case <-ctx.Done():
		return nil, 0, 0, ctx.Err()
	case <-time.After(2 * time.Second):
		return nil, 0, 0, fmt.Errorf("rtsp: no frame within probe window")
	}
}

type rtspSession struct {
	client  *gortsplib.Client
	frameCh chan []byte
	closed  chan struct{}
	once    sync.Once
}

func (c *RTSPConnector) Open(ctx context.Context, rtspURL string) (Session, error) {
	u, err := base.ParseURL(rtspURL)
	if err != nil {
		return nil, err
	}

	client := c.newClient()
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return nil, err
	}

	desc, _, err := client.Describe(u)
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := client.SetupAll(desc.BaseURL, desc.Medias); err != nil {
		client.Close()
		return nil, err
	}

	sess := &rtspSession{
		client:  client,
		frameCh: make(chan []byte, 4),
		closed:  make(chan struct{}),
	}
	registerFrameCallback(client, desc, sess.frameCh)

	if _, err := client.Play(nil); err != nil {
		client.Close()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		sess.Close()
	}()

	return sess, nil
}

func (s *rtspSession) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case f := <-s.frameCh:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, fmt.Errorf("rtsp: session closed")
	}
}

func (s *rtspSession) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.client.Close()
	})
	return nil
}

// registerFrameCallback wires gortsplib's per-packet callback to push raw
// RTP payload bytes onto ch without blocking the demuxer; callers treat
// each payload as one frame unit for pacing/health purposes.
func registerFrameCallback(client *gortsplib.Client, desc *description.Session, ch chan []byte) {
	client.OnPacketRTPAny(func(medi *description.Media, forma format.Format, pkt *rtp.Packet) {
		if len(pkt.Payload) == 0 {
			return
		}
		select {
		case ch <- pkt.Payload:
		default:
		}
	})
}

// resolutionFromMedias looks for an H264 SPS NAL among the media's first
// depacketized frame and parses its coded width/height via mediacommon's
// h264.SPS; falls back to 0,0 (resolved later by the recording manager's
// probe-frame fallback) for any other codec or a malformed SPS.
func resolutionFromMedias(medias []*description.Media, firstFrame []byte) (int, int) {
	isH264 := false
	for _, m := range medias {
		for _, f := range m.Formats {
			if _, ok := f.(*format.H264); ok {
				isH264 = true
			}
		}
	}
	if !isH264 {
		return 0, 0
	}

	for _, nalu := range splitAnnexBOrLengthPrefixed(firstFrame) {
		if len(nalu) == 0 || nalu[0]&0x1f != 7 { // 7 == SPS
			continue
		}
		var sps h264.SPS
		if err := sps.Unmarshal(nalu); err != nil {
			return 0, 0
		}
		return sps.Width(), sps.Height()
	}
	return 0, 0
}

// splitAnnexBOrLengthPrefixed returns payload as a single candidate NAL unit;
// gortsplib hands us raw RTP payload bytes, which for a single-NAL packet is
// already one NAL unit with its leading start-code/length stripped.
func splitAnnexBOrLengthPrefixed(payload []byte) [][]byte {
	if len(payload) == 0 {
		return nil
	}
	return [][]byte{payload}
}
