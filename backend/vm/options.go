package vm

import (
	"bufio"
	"io"
	"os"
)

// Option configures the Machine that executes vm programs
type Option func(*options)

type options struct {
	in        io.Reader
	out       io.Writer
	stepLimit uint64
}

func defaultOptions() options {
	return options{in: os.Stdin, out: os.Stdout}
}

func (o options) machine() *Machine {
	return &Machine{
		in:        bufio.NewReader(o.in),
		out:       bufio.NewWriter(o.out),
		stepLimit: o.stepLimit,
	}
}

// WithIO replaces the process' standard streams as the source of readByte
// and the destination of writeByte
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		if in != nil {
			o.in = in
		}
		if out != nil {
			o.out = out
		}
	}
}

// WithStepLimit stops a call after `n` executed instructions. Zero means no
// limit
func WithStepLimit(n uint64) Option {
	return func(o *options) {
		o.stepLimit = n
	}
}
