package wcl

import (
	"bytes"
	"strings"
	"sync"
)

var (
	strBufPool = sync.Pool{
		New: func() interface{} {
			sb := new(strings.Builder)
			sb.Grow(16 * 1024)
			return sb
		},
	}
	bytBufPool = sync.Pool{
		New: func() interface{} {
			buf := new(bytes.Buffer)
			buf.Grow(16 * 1024)
			return buf
		},
	}
)
