package semantic

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The verse matrix is stored in NumPy's .npy format so that indexes produced
// by the Python tooling used to prepare translations load unchanged.

var npyMagic = []byte("\x93NUMPY")

var (
	npyDescrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	npyFortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// readNPY decodes a two-dimensional little-endian float32 or float64 array in
// C order. The data is returned row-major as float32.
func readNPY(r io.Reader) (data []float32, rows, cols int, err error) {
	br := bufio.NewReader(r)
	var pre [8]byte
	if _, err := io.ReadFull(br, pre[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("read npy preamble: %w", err)
	}
	if !bytes.Equal(pre[:6], npyMagic) {
		return nil, 0, 0, errors.New("not an npy file")
	}

	var headerLen int
	switch major := pre[6]; major {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, 0, 0, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, 0, 0, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, 0, 0, fmt.Errorf("unsupported npy version %d", major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, 0, 0, fmt.Errorf("read npy header: %w", err)
	}
	h := string(header)

	m := npyDescrRe.FindStringSubmatch(h)
	if m == nil {
		return nil, 0, 0, errors.New("npy header has no descr")
	}
	var width int
	switch m[1] {
	case "<f4":
		width = 4
	case "<f8":
		width = 8
	default:
		return nil, 0, 0, fmt.Errorf("unsupported npy dtype %q", m[1])
	}
	if f := npyFortranRe.FindStringSubmatch(h); f == nil || f[1] != "False" {
		return nil, 0, 0, errors.New("npy array must be in C order")
	}
	s := npyShapeRe.FindStringSubmatch(h)
	if s == nil {
		return nil, 0, 0, errors.New("npy header has no shape")
	}
	var dims []int
	for _, part := range strings.Split(s[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, 0, 0, fmt.Errorf("bad npy shape %q", s[1])
		}
		dims = append(dims, n)
	}
	if len(dims) != 2 {
		return nil, 0, 0, fmt.Errorf("npy array must be two-dimensional, got shape (%s)", s[1])
	}
	rows, cols = dims[0], dims[1]

	raw := make([]byte, rows*cols*width)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, 0, 0, fmt.Errorf("read npy data: %w", err)
	}
	data = make([]float32, rows*cols)
	for i := range data {
		if width == 4 {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		} else {
			data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	}
	return data, rows, cols, nil
}

// writeNPY encodes a rows×cols float32 matrix as a version 1.0 .npy file.
func writeNPY(w io.Writer, data []float32, rows, cols int) error {
	if len(data) != rows*cols {
		return fmt.Errorf("npy: %d values do not fill a %dx%d matrix", len(data), rows, cols)
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// Magic, version and length take 10 bytes; the header ends in a newline
	// and the whole preamble is padded to a multiple of 64.
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	_ = binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)
	var buf [4]byte
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		bw.Write(buf[:])
	}
	return bw.Flush()
}
