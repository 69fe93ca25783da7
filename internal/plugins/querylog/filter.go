// Package querylog implements an observability filter that logs each
// query and/or its answer, grounded on
// original_source/Plugins/QueryLog.py's Log class.
package querylog

import (
	"context"
	"net"
	"strings"

	"github.com/amirdaaee/dnspy/internal/config"
	"github.com/amirdaaee/dnspy/internal/filter"
	"github.com/amirdaaee/dnspy/internal/registry"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

func init() {
	registry.Register(registry.Descriptor{
		PluginSchema: config.PluginSchema{
			Module: "Observability",
			Class:  "QueryLog",
			ModuleOptions: []config.OptionSpec{
				{Name: "log_level", Type: config.TString, Default: "info"},
			},
			ClassOptions: []config.OptionSpec{
				{Name: "question", Type: config.TBool, Default: false},
				{Name: "answer", Type: config.TBool, Default: true},
			},
		},
		New: newFilter,
	})
}

// Filter logs the incoming question and/or the outgoing answer at a
// configurable level.
type Filter struct {
	filter.Base
	LogQuestion bool
	LogAnswer   bool
	Level       logrus.Level
	Log         *logrus.Entry
}

func newFilter(_ context.Context, _ []filter.Filter, values config.Values) (filter.Filter, error) {
	level, err := logrus.ParseLevel(values.String("log_level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	return &Filter{
		Base:        filter.Base{PluginName: "Observability.QueryLog"},
		LogQuestion: values.Bool("question"),
		LogAnswer:   values.Bool("answer"),
		Level:       level,
		Log:         logrus.WithField("plugin", "Observability.QueryLog"),
	}, nil
}

func questionText(msg *dns.Msg) string {
	var b strings.Builder
	for _, q := range msg.Question {
		b.WriteString(q.String())
		b.WriteByte('\t')
	}
	return b.String()
}

func answerText(msg *dns.Msg) string {
	var b strings.Builder
	for _, rr := range msg.Answer {
		b.WriteString(rr.String())
		b.WriteByte('\t')
	}
	return b.String()
}

func (f *Filter) log(message string) {
	f.Log.Log(f.Level, strings.ReplaceAll(message, "\n", "\\n"))
}

func (f *Filter) BeforeResolve(_ context.Context, query, _ *dns.Msg, client net.Addr) error {
	if !f.LogQuestion {
		return nil
	}
	f.log("query from " + clientString(client) + ": " + questionText(query))
	return nil
}

func (f *Filter) AfterResolve(_ context.Context, query, response *dns.Msg, client net.Addr) error {
	if !f.LogAnswer {
		return nil
	}
	f.log("query from " + clientString(client) + ": " + questionText(query) + "| Answer: " + answerText(response))
	return nil
}

func clientString(client net.Addr) string {
	if client == nil {
		return "unknown"
	}
	return client.String()
}
