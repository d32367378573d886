package controller

import (
	"go.uber.org/zap"

	"github.com/wippyai/vrange"
)

type options struct {
	logger   *zap.Logger
	overscan int
	axis     vrange.Axis
}

func defaultOptions() options {
	return options{
		overscan: vrange.DefaultOverscan,
		axis:     vrange.AxisVertical,
	}
}

// Option configures a Controller.
type Option func(*options)

// WithOverscan sets how many extra items are kept beyond each viewport
// edge. The default is vrange.DefaultOverscan.
func WithOverscan(n int) Option {
	return func(o *options) { o.overscan = n }
}

// WithHorizontal makes the controller read and write the horizontal scroll
// axis.
func WithHorizontal(horizontal bool) Option {
	return func(o *options) {
		if horizontal {
			o.axis = vrange.AxisHorizontal
		} else {
			o.axis = vrange.AxisVertical
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}
