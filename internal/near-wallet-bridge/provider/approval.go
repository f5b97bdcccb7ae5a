package provider

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/skip2/go-qrcode"
)

// PendingRequest is a wallet request waiting for the user to approve it on
// another device.
type PendingRequest struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"createdAt"`
}

// ApprovalNotifier is told when a relayed request needs out-of-band approval
// and when it settles.
type ApprovalNotifier interface {
	Pending(req PendingRequest)
	Settled(id string)
}

// ApprovalNotifiers fans out to every notifier.
type ApprovalNotifiers []ApprovalNotifier

func (ns ApprovalNotifiers) Pending(req PendingRequest) {
	for _, n := range ns {
		n.Pending(req)
	}
}

func (ns ApprovalNotifiers) Settled(id string) {
	for _, n := range ns {
		n.Settled(id)
	}
}

// PendingLinks remembers the most recent unsettled request.
type PendingLinks struct {
	mu     sync.RWMutex
	latest *PendingRequest
}

func NewPendingLinks() *PendingLinks {
	return &PendingLinks{}
}

func (p *PendingLinks) Pending(req PendingRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = &req
}

func (p *PendingLinks) Settled(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest != nil && p.latest.ID == id {
		p.latest = nil
	}
}

func (p *PendingLinks) Latest() (PendingRequest, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return PendingRequest{}, false
	}
	return *p.latest, true
}

// TerminalQR prints approval links as a QR code a phone can scan.
type TerminalQR struct {
	W io.Writer
}

func (t TerminalQR) Pending(req PendingRequest) {
	if t.W == nil || req.Link == "" {
		return
	}
	q, err := qrcode.New(req.Link, qrcode.Medium)
	if err != nil {
		_, _ = fmt.Fprintf(t.W, "Approve %s in HOT Wallet: %s\n", req.Method, req.Link)
		return
	}
	_, _ = fmt.Fprintf(t.W, "Approve %s in HOT Wallet:\n%s\n%s\n", req.Method, q.ToSmallString(false), req.Link)
}

func (t TerminalQR) Settled(string) {}

// QRCodePNG renders link as a PNG image of size x size pixels.
func QRCodePNG(link string, size int) ([]byte, error) {
	if link == "" {
		return nil, errors.New("empty link")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	return png, nil
}
