// Package websocket publishes documents to a share server. It is write-only:
// each Save pushes the whole document and waits for the server's ack.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/internal/storage"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/OCAP2/sitac/pkg/streaming"
	"github.com/rs/zerolog"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	// Client identifies this host to the server
	Client string
}

// Backend streams documents to the share server.
type Backend struct {
	cfg  Config
	conn *connection

	mu     sync.Mutex
	opened string
}

// New creates the backend. Init connects.
func New(cfg Config, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:  cfg,
		conn: newConnection(log),
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init(ctx context.Context) error {
	return b.conn.dial(ctx, b.cfg.URL, b.cfg.Secret)
}

// Close ends the open session, if any, and disconnects.
func (b *Backend) Close() error {
	b.mu.Lock()
	name := b.opened
	b.opened = ""
	b.mu.Unlock()

	if name != "" {
		if data, err := marshalEnvelope(streaming.TypeCloseDocument, streaming.ClosePayload{Name: name}); err == nil {
			if err := b.conn.sendAndWait(context.Background(), data, streaming.TypeCloseDocument); err != nil {
				b.conn.log.Warn().Err(err).Str("document", name).Msg("Close not acknowledged")
			}
		}
	}
	return b.conn.close()
}

// Save publishes doc, opening a session for doc.Name first when needed.
func (b *Backend) Save(ctx context.Context, doc core.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.opened != doc.Name {
		open, err := marshalEnvelope(streaming.TypeOpenDocument, streaming.OpenPayload{Name: doc.Name, Client: b.cfg.Client})
		if err != nil {
			return err
		}
		b.conn.setOpen(open)
		if err := b.conn.sendAndWait(ctx, open, streaming.TypeOpenDocument); err != nil {
			return fmt.Errorf("open %q: %w", doc.Name, err)
		}
		b.opened = doc.Name
	}

	raw, err := codec.MarshalDocument(doc)
	if err != nil {
		return err
	}
	data, err := json.Marshal(streaming.Envelope{Type: streaming.TypeDocument, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal document envelope: %w", err)
	}
	return b.conn.sendAndWait(ctx, data, streaming.TypeDocument)
}

// Load is not supported: the server never sends documents back.
func (b *Backend) Load(context.Context, string) (core.Document, []error, error) {
	return core.Document{}, nil, storage.ErrUnsupported
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
