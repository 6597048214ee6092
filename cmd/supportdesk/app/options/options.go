// Package options provides the server command options.
package options

import (
	"github.com/kart-io/supportdesk/internal/supportdesk"
	"github.com/kart-io/supportdesk/pkg/app"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the options for the supportdesk server command.
type ServerOptions struct {
	*supportdesk.Options `json:",inline" mapstructure:",squash"`
}

// NewServerOptions creates ServerOptions with defaults.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		Options: supportdesk.NewOptions(),
	}
}

// Config builds the runtime configuration from the completed options.
func (o *ServerOptions) Config() (*supportdesk.Options, error) {
	return o.Options, nil
}
