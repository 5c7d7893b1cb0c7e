package mcf

import "errors"

var (
	ErrInvalidMagic       = errors.New("invalid MCF magic")
	ErrUnsupportedMajor   = errors.New("unsupported MCF major version")
	ErrUnsupportedSection = errors.New("unsupported MCF section version")
	ErrMissingSection     = errors.New("missing MCF section")
	ErrCorruptFile        = errors.New("corrupt MCF file")
	ErrTruncated          = errors.New("truncated MCF file")
)
