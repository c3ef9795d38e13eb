package protocol

import "fmt"

func (c Codec) appendID(buf []byte, id PlayerID) ([]byte, error) {
	if len(id) != c.IDWidth {
		return nil, fmt.Errorf("%w: %q has %d bytes, want %d", ErrIDWidth, id, len(id), c.IDWidth)
	}
	return append(buf, id...), nil
}

func appendByte(buf []byte, v int, what string) ([]byte, error) {
	if v < 0 || v > 0xff {
		return nil, fmt.Errorf("%w: %s=%d", ErrOutOfRange, what, v)
	}
	return append(buf, byte(v)), nil
}

func appendChoice(buf []byte, c Choice) ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoice, uint8(c))
	}
	return append(buf, byte(c)), nil
}

func (c Codec) appendStandings(buf []byte, standings []Standing) ([]byte, error) {
	var err error
	for _, s := range standings {
		if buf, err = c.appendID(buf, s.ID); err != nil {
			return nil, err
		}
		if buf, err = appendByte(buf, s.Score, "score"); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (c Codec) readIDs(body []byte) []PlayerID {
	ids := make([]PlayerID, 0, len(body)/c.IDWidth)
	for off := 0; off < len(body); off += c.IDWidth {
		ids = append(ids, PlayerID(body[off:off+c.IDWidth]))
	}
	return ids
}

func (c Codec) readStandings(body []byte) []Standing {
	rec := c.IDWidth + 1
	out := make([]Standing, 0, len(body)/rec)
	for off := 0; off < len(body); off += rec {
		out = append(out, Standing{
			ID:    PlayerID(body[off : off+c.IDWidth]),
			Score: int(body[off+c.IDWidth]),
		})
	}
	return out
}
