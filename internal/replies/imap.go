package replies

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
)

// IMAPMailbox reads one mailbox over an authenticated TLS session.
type IMAPMailbox struct {
	c    *imapclient.Client
	log  *zap.Logger
	stop func() bool
}

type IMAPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	TLS      *tls.Config
}

// DialIMAP connects over TLS, logs in and selects the mailbox.
func DialIMAP(ctx context.Context, o IMAPOptions, log *zap.Logger) (*IMAPMailbox, error) {
	if o.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if o.Username == "" || o.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	if o.Port == 0 {
		o.Port = 993
	}
	if o.Mailbox == "" {
		o.Mailbox = "INBOX"
	}
	tlsCfg := o.TLS
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: o.Host}
	}
	if log == nil {
		log = zap.NewNop()
	}

	addr := net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	c, err := imapclient.DialTLS(addr, &imapclient.Options{TLSConfig: tlsCfg})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Close on cancel so blocked commands return.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })

	if err := c.Login(o.Username, o.Password).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(o.Mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap select %s: %w", o.Mailbox, err)
	}
	return &IMAPMailbox{c: c, log: log.Named("imap"), stop: stop}, nil
}

// Unseen lists unseen messages received since the cutoff, newest first.
// Only envelopes are fetched so nothing gets flagged \Seen.
func (m *IMAPMailbox) Unseen(ctx context.Context, since time.Time, max int) ([]Message, error) {
	if max <= 0 {
		max = 200
	}
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   since,
	}
	data, err := m.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	cmd := m.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
	})
	defer func() { _ = cmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		md := cmd.Next()
		if md == nil {
			break
		}
		buf, err := md.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		msg := Message{UID: uint32(buf.UID), Date: buf.InternalDate}
		if env := buf.Envelope; env != nil {
			msg.Subject = env.Subject
			if !env.Date.IsZero() {
				msg.Date = env.Date
			}
			msg.From = firstAddr(env.From)
		}
		out = append(out, msg)
	}
	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

// MarkSeen adds \Seen to the given UIDs.
func (m *IMAPMailbox) MarkSeen(_ context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	set := make([]imap.UID, len(uids))
	for i, u := range uids {
		set[i] = imap.UID(u)
	}
	cmd := m.c.Store(imap.UIDSetNum(set...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

// Close logs out then closes the connection.
func (m *IMAPMailbox) Close() error {
	m.stop()
	if err := m.c.Logout().Wait(); err != nil {
		m.log.Debug("imap logout", zap.Error(err))
	}
	return m.c.Close()
}

func firstAddr(addrs []imap.Address) string {
	for i := range addrs {
		if a := strings.TrimSpace(addrs[i].Addr()); a != "" {
			return a
		}
	}
	return ""
}
