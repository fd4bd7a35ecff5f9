package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/mdlayher/packet"

	"github.com/openshift/bondmon/pkg/log"
)

const (
	etherTypeARP = 0x0806
	// maxSeen bounds the number of senders remembered between two observations.
	maxSeen = 256
)

// conn is the raw socket of a prober. *packet.Conn implements it.
type conn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

func listen(index int) (conn, error) {
	ifi, err := net.InterfaceByIndex(index)
	if err != nil {
		return nil, err
	}
	c, err := packet.Listen(ifi, packet.Raw, etherTypeARP, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open ARP socket on %s: %w", ifi.Name, err)
	}
	return c, nil
}

// prober sends ARP requests out of one member and records which senders replied.
type prober struct {
	index int
	mac   net.HardwareAddr
	src   netip.Addr
	c     conn

	mu   sync.Mutex
	seen map[netip.Addr]bool

	done chan struct{}
	wg   sync.WaitGroup
}

// prober returns the prober of a member, opening its socket on first use.
func (d *Device) prober(index int) (*prober, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, net.ErrClosed
	}
	if p, ok := d.probers[index]; ok {
		return p, nil
	}

	link, err := d.nl.LinkByIndex(index)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interface with index %d: %w", index, err)
	}
	c, err := d.listenFn(index)
	if err != nil {
		return nil, err
	}

	p := &prober{
		index: index,
		mac:   link.Attrs().HardwareAddr,
		src:   d.sourceAddr(),
		c:     c,
		seen:  make(map[netip.Addr]bool),
		done:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.readLoop()
	d.probers[index] = p

	log.Log.Debug("ARP prober started", "bond", d.bond, "interface", link.Attrs().Name, "source", p.src)
	return p, nil
}

// SendProbe broadcasts an ARP request for target out of the member.
func (d *Device) SendProbe(ctx context.Context, index int, target netip.Addr) error {
	p, err := d.prober(index)
	if err != nil {
		return err
	}

	frame, err := arpFrame(layers.ARPRequest, p.mac, p.src, layers.EthernetBroadcast, target)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := p.c.SetWriteDeadline(dl); err != nil {
			return err
		}
	}
	if _, err := p.c.WriteTo(frame, &packet.Addr{HardwareAddr: layers.EthernetBroadcast}); err != nil {
		return fmt.Errorf("failed to send ARP probe for %s: %w", target, err)
	}
	return nil
}

// ObserveLiveness reports and clears whether target was heard on the member.
func (d *Device) ObserveLiveness(index int, target netip.Addr) bool {
	d.mu.Lock()
	p, ok := d.probers[index]
	d.mu.Unlock()
	if !ok {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	seen := p.seen[target]
	delete(p.seen, target)
	return seen
}

func (p *prober) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 1514)

	for {
		select {
		case <-p.done:
			return
		default:
		}

		if err := p.c.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		n, _, err := p.c.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Log.Debug("failed to read ARP frame", "index", p.index, "error", err)
			continue
		}

		sender, ok := arpSender(buf[:n])
		if !ok {
			continue
		}
		p.mu.Lock()
		if _, ok := p.seen[sender]; ok || len(p.seen) < maxSeen {
			p.seen[sender] = true
		}
		p.mu.Unlock()
	}
}

func (p *prober) close() error {
	close(p.done)
	err := p.c.Close()
	p.wg.Wait()
	return err
}

// arpFrame builds an Ethernet frame carrying an ARP packet.
func arpFrame(op uint16, srcMAC net.HardwareAddr, srcIP netip.Addr, dstMAC net.HardwareAddr, dstIP netip.Addr) ([]byte, error) {
	if len(srcMAC) != 6 {
		return nil, fmt.Errorf("invalid source address %q", srcMAC)
	}
	targetMAC := net.HardwareAddr{0, 0, 0, 0, 0, 0}
	if op == layers.ARPReply {
		targetMAC = dstMAC
	}

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         op,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: srcIP.AsSlice(),
		DstHwAddress:      targetMAC,
		DstProtAddress:    dstIP.AsSlice(),
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		return nil, fmt.Errorf("failed to build ARP frame: %w", err)
	}
	return buf.Bytes(), nil
}

// arpSender returns the sender protocol address of an ARP frame.
func arpSender(frame []byte) (netip.Addr, bool) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	arp, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	if !ok {
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(arp.SourceProtAddress)
	if !ok || addr.IsUnspecified() {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
