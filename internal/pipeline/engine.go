// Package pipeline runs the six-step per-datagram procedure: parse,
// build a response skeleton, run the pre-resolve filter chain,
// forward to upstream, run the post-resolve filter chain, serialize.
// Grounded on original_source/DNS/Server.py's request handling loop,
// adapted to Go's goroutine-per-datagram model per spec §5.
package pipeline

import (
	"context"
	"net"
	"time"

	"github.com/amirdaaee/dnspy/internal/dnspyerr"
	"github.com/amirdaaee/dnspy/internal/filter"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// DefaultUpstreamTimeout is the recommended bound from spec §5.
const DefaultUpstreamTimeout = 5 * time.Second

// Engine runs the filter chain and forwards to a fixed upstream
// resolver over UDP.
type Engine struct {
	Filters        []filter.Filter
	UpstreamAddr   string
	UpstreamClient *dns.Client
	Log            *logrus.Entry
}

// New builds an Engine bound to upstreamAddr ("ip:port"), using the
// filter chain in declared order.
func New(filters []filter.Filter, upstreamAddr string) *Engine {
	return &Engine{
		Filters:      filters,
		UpstreamAddr: upstreamAddr,
		UpstreamClient: &dns.Client{
			Net:     "udp",
			Timeout: DefaultUpstreamTimeout,
		},
		Log: logrus.WithField("component", "pipeline"),
	}
}

// Handle runs the full six-step procedure for one inbound datagram
// and returns the wire-format bytes to send back to client, or nil if
// nothing should be sent (parse or serialization failure).
func (e *Engine) Handle(ctx context.Context, raw []byte, client net.Addr) []byte {
	// Step 1: parse.
	query := new(dns.Msg)
	if err := query.Unpack(raw); err != nil {
		e.Log.WithError(&dnspyerr.MalformedMessage{Cause: err}).
			WithField("client", client).
			Warn("dropping malformed datagram")
		return nil
	}

	// Step 2: build the response skeleton.
	response := new(dns.Msg)
	response.SetReply(query)
	response.RecursionAvailable = true
	response.Answer = nil

	// The response's question section always mirrors the original
	// query, independent of filter pruning (spec §4.5, Open Question ii).
	originalQuestion := append([]dns.Question(nil), query.Question...)

	// Step 3: pre-resolve filter chain.
	e.runHooks(ctx, query, response, client, filter.Filter.BeforeResolve)

	// Step 4: upstream forwarding, if anything remains unanswered.
	if len(query.Question) > 0 {
		e.forward(query, response, client)
	}

	// Step 5: post-resolve filter chain.
	e.runHooks(ctx, query, response, client, filter.Filter.AfterResolve)

	response.Question = originalQuestion

	// Step 6: serialize.
	out, err := response.Pack()
	if err != nil {
		e.Log.WithError(&dnspyerr.ResponseSendError{Cause: err}).
			WithField("client", client).
			Error("failed to serialize response")
		return nil
	}
	return out
}

type hook func(filter.Filter, context.Context, *dns.Msg, *dns.Msg, net.Addr) error

func (e *Engine) runHooks(ctx context.Context, query, response *dns.Msg, client net.Addr, h hook) {
	for _, f := range e.Filters {
		if err := h(f, ctx, query, response, client); err != nil {
			e.Log.WithError(err).
				WithField("plugin", f.Name()).
				WithField("client", client).
				Warn("filter hook returned an error, continuing")
		}
	}
}

// forward sends query to the upstream resolver and, on success,
// appends its answer section to response. Timeouts and I/O errors are
// logged and the stage is skipped; previously populated answers are
// still returned.
func (e *Engine) forward(query, response *dns.Msg, client net.Addr) {
	upstreamReply, _, err := e.UpstreamClient.Exchange(query, e.UpstreamAddr)
	if err != nil {
		var wrapped error
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			wrapped = &dnspyerr.UpstreamTimeout{Cause: err}
		} else {
			wrapped = &dnspyerr.UpstreamIOError{Cause: err}
		}
		e.Log.WithError(wrapped).
			WithField("client", client).
			WithField("upstream", e.UpstreamAddr).
			Warn("upstream forwarding failed, skipping stage")
		return
	}
	if upstreamReply != nil {
		response.Answer = append(response.Answer, upstreamReply.Answer...)
	}
}
