// Package capture implements the Capture Source component: it opens a
// live interface or an offline pcap file, applies an optional BPF
// filter, and turns each packet gopacket hands back into a
// model.CapturedFrame pushed onto the pipeline's capture queue.
package capture

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"

	"dpinet.dev/dpinet/internal/errs"
	"dpinet.dev/dpinet/internal/log"
	"dpinet.dev/dpinet/internal/model"
)

// Config configures a Source.
type Config struct {
	Interface   string
	OfflineFile string
	Promiscuous bool
	SnapLen     int
	Filter      string
}

// Source reads frames from a live interface or an offline capture file
// and assigns each one a monotonic frame id.
type Source struct {
	cfg    Config
	handle *pcap.Handle
	nextID uint64
}

// NewSource returns an unopened Source; call PostConstruct before Boot.
func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg}
}

// PostConstruct opens the underlying pcap handle and compiles the BPF
// filter, if one is configured. It must run before Boot.
func (s *Source) PostConstruct() error {
	var handle *pcap.Handle
	var err error

	if s.cfg.OfflineFile != "" {
		handle, err = pcap.OpenOffline(s.cfg.OfflineFile)
		if err != nil {
			return fmt.Errorf("%w: open offline file %s: %v", errs.ErrInterfaceUnavailable, s.cfg.OfflineFile, err)
		}
	} else {
		inactive, err := pcap.NewInactiveHandle(s.cfg.Interface)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrInterfaceUnavailable, err)
		}
		defer inactive.CleanUp()

		snapLen := s.cfg.SnapLen
		if snapLen <= 0 {
			snapLen = 65535
		}
		if err := inactive.SetSnapLen(snapLen); err != nil {
			return fmt.Errorf("%w: set snaplen: %v", errs.ErrInterfaceUnavailable, err)
		}
		if err := inactive.SetPromisc(s.cfg.Promiscuous); err != nil {
			return fmt.Errorf("%w: set promiscuous: %v", errs.ErrInterfaceUnavailable, err)
		}
		if err := inactive.SetTimeout(-1); err != nil {
			return fmt.Errorf("%w: set timeout: %v", errs.ErrInterfaceUnavailable, err)
		}

		handle, err = inactive.Activate()
		if err != nil {
			if err == pcap.CANTSETRFMON {
				return fmt.Errorf("%w: %v", errs.ErrPermissionDenied, err)
			}
			return fmt.Errorf("%w: activate %s: %v", errs.ErrInterfaceUnavailable, s.cfg.Interface, err)
		}
	}

	if s.cfg.Filter != "" {
		if err := handle.SetBPFFilter(s.cfg.Filter); err != nil {
			handle.Close()
			return fmt.Errorf("%w: %v", errs.ErrFilterInvalid, err)
		}
	}

	s.handle = handle
	log.GetLogger().WithFields(logrus.Fields{
		"component": "capture",
		"interface": s.cfg.Interface,
		"offline":   s.cfg.OfflineFile,
		"filter":    s.cfg.Filter,
	}).Info("capture source opened")
	return nil
}

// LinkType returns the link-layer type the underlying handle reports,
// translated to this module's own LinkType enum.
func (s *Source) LinkType() model.LinkType {
	switch s.handle.LinkType() {
	case layers.LinkTypeEthernet:
		return model.LinkTypeEthernet
	default:
		return model.LinkTypeRaw
	}
}

// Boot reads packets until ctx is cancelled or the handle runs out of
// input (end of an offline file), sending each as a model.CapturedFrame
// on out. It closes out before returning.
func (s *Source) Boot(ctx context.Context, out chan<- model.CapturedFrame) error {
	defer close(out)
	linkType := s.LinkType()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		data, ci, err := s.handle.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: %v", errs.ErrDeviceClosed, err)
		}

		frame := model.CapturedFrame{
			ID:        atomic.AddUint64(&s.nextID, 1),
			Timestamp: ci.Timestamp,
			LinkType:  linkType,
			Data:      data,
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

// Shutdown closes the underlying pcap handle. Safe to call once Boot has
// returned or in response to a cancellation signal.
func (s *Source) Shutdown() {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
}
