package relay

import (
	"strings"

	"BProject/logger"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Conf configures the NATS relay.
type Conf struct {
	Servers []string // e.g. nats://127.0.0.1:4222
	Name    string   // connection name, usually the hub node ID
}

// Relay fans hub frames out across nodes over NATS core pub/sub, one subject
// per document. It is an alternative to the Redis fanout for deployments
// already running NATS.
type Relay struct {
	nc *nats.Conn
}

// New connects to the NATS servers.
func New(conf Conf) (*Relay, error) {
	if len(conf.Servers) == 0 {
		return nil, errors.New("relay: no servers configured")
	}
	nc, err := nats.Connect(strings.Join(conf.Servers, ","),
		nats.Name(conf.Name),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return &Relay{nc: nc}, nil
}

func subject(docID string) string { return "board.fanout." + docID }

// Publish sends one envelope for a document. Best effort; errors are the
// caller's to log and swallow.
func (r *Relay) Publish(docID string, data []byte) error {
	return errors.Wrap(r.nc.Publish(subject(docID), data), "relay publish")
}

// Subscribe delivers every envelope published for a document, including this
// node's own (callers filter by node ID).
func (r *Relay) Subscribe(docID string, fn func([]byte)) (*nats.Subscription, error) {
	sub, err := r.nc.Subscribe(subject(docID), func(m *nats.Msg) {
		fn(m.Data)
	})
	if err != nil {
		return nil, errors.Wrap(err, "relay subscribe")
	}
	return sub, nil
}

// Close drains and closes the connection.
func (r *Relay) Close() {
	if err := r.nc.Drain(); err != nil {
		logger.Warnf("[relay] drain: %v", err)
	}
}
