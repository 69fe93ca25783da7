// Package example is an inert demo filter exercising both
// module-scope and class-scope configuration, grounded on
// original_source/Plugins/Example.py's ExamplePlugin.
package example

import (
	"context"
	"net"

	"github.com/amirdaaee/dnspy/internal/config"
	"github.com/amirdaaee/dnspy/internal/filter"
	"github.com/amirdaaee/dnspy/internal/registry"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

func init() {
	registry.Register(registry.Descriptor{
		PluginSchema: config.PluginSchema{
			Module: "Example",
			Class:  "ExamplePlugin",
			ModuleOptions: []config.OptionSpec{
				{Name: "message_before_module_level", Type: config.TString, Default: "hello world"},
				{Name: "message_after_module_level", Type: config.TString, Default: "goodbye world"},
			},
			ClassOptions: []config.OptionSpec{
				{Name: "message_before", Type: config.TString, Default: "hello dns"},
				{Name: "message_after", Type: config.TString, Default: "goodbye dns"},
			},
		},
		New: newFilter,
	})
}

// Filter does nothing to the query or response; it exists to show the
// plugin contract and to exercise module- vs. class-scope option
// resolution end to end.
type Filter struct {
	filter.Base
	MessageBeforeModule string
	MessageAfterModule  string
	MessageBefore       string
	MessageAfter        string
	Log                 *logrus.Entry
}

func newFilter(_ context.Context, _ []filter.Filter, values config.Values) (filter.Filter, error) {
	return &Filter{
		Base:                filter.Base{PluginName: "Example.ExamplePlugin"},
		MessageBeforeModule: values.String("message_before_module_level"),
		MessageAfterModule:  values.String("message_after_module_level"),
		MessageBefore:       values.String("message_before"),
		MessageAfter:        values.String("message_after"),
		Log:                 logrus.WithField("plugin", "Example.ExamplePlugin"),
	}, nil
}

func (f *Filter) BeforeResolve(context.Context, *dns.Msg, *dns.Msg, net.Addr) error {
	f.Log.Debug("pre resolve plugin example [module level]: ", f.MessageBeforeModule)
	f.Log.Debug("pre resolve plugin example [class level]: ", f.MessageBefore)
	return nil
}

func (f *Filter) AfterResolve(context.Context, *dns.Msg, *dns.Msg, net.Addr) error {
	f.Log.Debug("post resolve plugin example [module level]: ", f.MessageAfterModule)
	f.Log.Debug("post resolve plugin example [class level]: ", f.MessageAfter)
	return nil
}
