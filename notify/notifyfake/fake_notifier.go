package fakenotifier

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-pm-server/notify"
)

var _ notify.Notifier = (*FakeNotifier)(nil)

type Sent struct {
	Kind  string
	Email string
	Name  string
	Link  string
}

// FakeNotifier records every notification. Err, when set, is returned from every send.
type FakeNotifier struct {
	Err  error
	sent []Sent
	lock sync.Mutex
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (n *FakeNotifier) SendWelcome(_ context.Context, email, name string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.sent = append(n.sent, Sent{Kind: notify.KindWelcome, Email: email, Name: name})
	return n.Err
}

func (n *FakeNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.sent = append(n.sent, Sent{Kind: notify.KindPasswordReset, Email: email, Link: link})
	return n.Err
}

func (n *FakeNotifier) SetErr(err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.Err = err
}

// Sent returns the notifications of kind, in send order.
func (n *FakeNotifier) Sent(kind string) []Sent {
	n.lock.Lock()
	defer n.lock.Unlock()
	var out []Sent
	for _, s := range n.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
