package proof

import (
	"bufio"
	"io"
	"math/big"

	"github.com/pkg/errors"

	"prp-proof/modarith"
)

// Reader streams the fixed-width residues that follow a header.
type Reader struct {
	r     *bufio.Reader
	buf   []byte
	count int
}

// NewReader reads residues of m's byte width from r.
func NewReader(r *bufio.Reader, m modarith.Modulus) *Reader {
	return &Reader{r: r, buf: make([]byte, m.ByteWidth())}
}

// Width is the size of one residue in bytes.
func (r *Reader) Width() int { return len(r.buf) }

// Count is the number of residues read or skipped so far.
func (r *Reader) Count() int { return r.count }

// Next returns the next residue as an unreduced integer.
func (r *Reader) Next() (*big.Int, error) {
	if err := r.fill(); err != nil {
		return nil, err
	}
	return modarith.DecodeLE(r.buf), nil
}

// Skip consumes one residue without decoding it.
func (r *Reader) Skip() error { return r.fill() }

func (r *Reader) fill() error {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return newError(KindResidueRead, "residue", errors.Wrapf(err, "residue %d", r.count))
	}
	r.count++
	return nil
}

// WriteResidue appends x in the little-endian layout Reader expects.
func WriteResidue(w io.Writer, m modarith.Modulus, x *big.Int) error {
	_, err := w.Write(modarith.EncodeLE(x, m.ByteWidth()))
	return errors.Wrap(err, "proof: write residue")
}

// tailSlack is how many trailing zero bytes a complete file may carry
// before it is assumed to be a preallocated, partially written one.
const tailSlack = 10

// GuessFileSize estimates how much of a preallocated proof file has been
// written. Unwritten space is zero, so the size is the offset just past the
// last non-zero byte, unless that leaves no more than tailSlack zero bytes,
// in which case the file is taken as written in full. r is rewound to the
// start before returning.
func GuessFileSize(r io.ReadSeeker) (int64, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "proof: seek end")
	}
	const block = 1 << 16
	buf := make([]byte, block)
	last := int64(0)
scan:
	for end := size; end > 0; {
		start := max(end-block, 0)
		chunk := buf[:end-start]
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return 0, errors.Wrap(err, "proof: seek")
		}
		if _, err := io.ReadFull(r, chunk); err != nil {
			return 0, errors.Wrap(err, "proof: read tail")
		}
		for i := len(chunk) - 1; i >= 0; i-- {
			if chunk[i] != 0 {
				last = start + int64(i) + 1
				break scan
			}
		}
		end = start
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "proof: rewind")
	}
	if last < size-tailSlack {
		return last, nil
	}
	return size, nil
}
