package dtm0log

import (
	"fmt"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

// Durable object layouts, in words:
//
//	log header:   magic, main list, aux list
//	record:       magic, originator container, originator key, timestamp,
//	              participants, nr, payload, payload length, link
//	participants: magic, nr, then container, key, state per participant
const (
	logMagic    uint64 = 0x64746d306c6f6731 // "dtm0log1"
	recordMagic uint64 = 0x64746d3072656331 // "dtm0rec1"
	paMagic     uint64 = 0x64746d3070613031 // "dtm0pa01"

	logHeaderWords = 3
	recordWords    = 9
)

var (
	logHeaderSize = be.WordsSize(logHeaderWords)
	recordSize    = be.WordsSize(recordWords)
)

func participantsSize(nr int) uint64 {
	return be.WordsSize(2 + 3*nr)
}

type logHeader struct {
	main, aux be.Ptr
}

func encodeLogHeader(h logHeader) []byte {
	return be.EncodeWords(logMagic, uint64(h.main), uint64(h.aux))
}

func decodeLogHeader(ptr be.Ptr, b []byte) (logHeader, error) {
	w, err := be.DecodeWords(b, logHeaderWords)
	if err != nil {
		return logHeader{}, fmt.Errorf("dtm0log: header %s: %w", ptr, err)
	}
	if w[0] != logMagic {
		return logHeader{}, fmt.Errorf("%w: %s is not a log header (magic %#x)", ErrCorrupt, ptr, w[0])
	}
	return logHeader{main: be.Ptr(w[1]), aux: be.Ptr(w[2])}, nil
}

type durableRecord struct {
	ptr        be.Ptr
	id         dtx.ID
	pa         be.Ptr
	nr         uint64
	payload    be.Ptr
	payloadLen uint64
	link       be.Ptr
}

func encodeRecord(r durableRecord) []byte {
	return be.EncodeWords(
		recordMagic,
		r.id.Originator.Container,
		r.id.Originator.Key,
		r.id.Timestamp,
		uint64(r.pa),
		r.nr,
		uint64(r.payload),
		r.payloadLen,
		uint64(r.link),
	)
}

func decodeRecord(ptr be.Ptr, b []byte) (durableRecord, error) {
	w, err := be.DecodeWords(b, recordWords)
	if err != nil {
		return durableRecord{}, fmt.Errorf("dtm0log: record %s: %w", ptr, err)
	}
	if w[0] != recordMagic {
		return durableRecord{}, fmt.Errorf("%w: %s is not a record (magic %#x)", ErrCorrupt, ptr, w[0])
	}
	return durableRecord{
		ptr: ptr,
		id: dtx.ID{
			Originator: dtx.FID{Container: w[1], Key: w[2]},
			Timestamp:  w[3],
		},
		pa:         be.Ptr(w[4]),
		nr:         w[5],
		payload:    be.Ptr(w[6]),
		payloadLen: w[7],
		link:       be.Ptr(w[8]),
	}, nil
}

func encodeParticipants(ps []dtx.Participant) []byte {
	words := make([]uint64, 0, 2+3*len(ps))
	words = append(words, paMagic, uint64(len(ps)))
	for _, p := range ps {
		words = append(words, p.FID.Container, p.FID.Key, uint64(p.State))
	}
	return be.EncodeWords(words...)
}

func decodeParticipants(ptr be.Ptr, b []byte, nr uint64) ([]dtx.Participant, error) {
	w, err := be.DecodeWords(b, int(2+3*nr))
	if err != nil {
		return nil, fmt.Errorf("dtm0log: participants %s: %w", ptr, err)
	}
	if w[0] != paMagic || w[1] != nr {
		return nil, fmt.Errorf("%w: %s is not a participant array of %d", ErrCorrupt, ptr, nr)
	}
	out := make([]dtx.Participant, nr)
	for i := range out {
		base := 2 + 3*i
		st := dtx.State(w[base+2])
		if !st.Valid() {
			return nil, fmt.Errorf("%w: participant %d of %s has state %d", ErrCorrupt, i, ptr, w[base+2])
		}
		out[i] = dtx.Participant{
			FID:   dtx.FID{Container: w[base], Key: w[base+1]},
			State: st,
		}
	}
	return out, nil
}
