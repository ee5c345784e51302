package notification

import (
	"context"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/mhews/mhews/internal/errors"
)

const recipientPlaceholder = "{to}"

// ShoutrrrGateway delivers through any shoutrrr service URL. The URL
// template's {to} placeholder is replaced with the query-escaped recipient,
// so one template can address every recipient.
type ShoutrrrGateway struct {
	template string
	timeout  time.Duration
}

// NewShoutrrrGateway validates the template by building a sender for a
// sample recipient.
func NewShoutrrrGateway(template string, timeout time.Duration) (*ShoutrrrGateway, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return nil, errors.Newf("shoutrrr URL template is empty").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	g := &ShoutrrrGateway{template: template, timeout: timeout}
	if _, err := shoutrrr.CreateSender(g.urlFor("0")); err != nil {
		return nil, errors.New(scrubURLError(err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("operation", "validate_shoutrrr_url").
			Build()
	}
	return g, nil
}

// Name implements Gateway.
func (g *ShoutrrrGateway) Name() string { return "shoutrrr" }

func (g *ShoutrrrGateway) urlFor(to string) string {
	return strings.ReplaceAll(g.template, recipientPlaceholder, url.QueryEscape(to))
}

// Send implements Gateway. The from address is ignored; shoutrrr services
// carry the sender in the URL.
func (g *ShoutrrrGateway) Send(ctx context.Context, _, to, body string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	sender, err := shoutrrr.CreateSender(g.urlFor(to))
	if err != nil {
		return Receipt{}, errors.New(scrubURLError(err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if g.timeout > 0 {
		sender.Timeout = g.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	for _, sendErr := range sender.Send(body, &stypes.Params{}) {
		if sendErr != nil {
			return Receipt{}, errors.New(scrubURLError(sendErr)).
				Component("notification").
				Category(errors.CategoryIntegration).
				Build()
		}
	}

	return Receipt{SID: uuid.NewString(), Status: "sent"}, nil
}

// scrubURLError drops URL userinfo that shoutrrr may echo back in errors.
func scrubURLError(err error) error {
	msg := err.Error()
	if i := strings.Index(msg, "://"); i >= 0 {
		if at := strings.Index(msg[i:], "@"); at >= 0 {
			msg = msg[:i+3] + "[REDACTED]" + msg[i+at:]
		}
	}
	return errors.NewStd(msg)
}
