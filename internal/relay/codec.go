package relay

import (
	"encoding/binary"
	"fmt"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
)

// payloadSize is the exact wire size of a completion message: an 8-byte
// big-endian quest id followed by a 20-byte user address.
const payloadSize = 8 + domain.AddressLength

// EncodeCompletion packs a quest completion into its fixed-width wire form.
func EncodeCompletion(questID uint64, user domain.Address) []byte {
	buf := make([]byte, payloadSize)
	binary.BigEndian.PutUint64(buf[:8], questID)
	copy(buf[8:], user[:])
	return buf
}

// DecodeCompletion unpacks a completion payload. Any length other than the
// fixed width is malformed; there is no partial decode.
func DecodeCompletion(payload []byte) (questID uint64, user domain.Address, err error) {
	if len(payload) != payloadSize {
		return 0, domain.Address{}, perrors.WithMetadata(perrors.CodePayloadMalformed, "completion payload has wrong length", map[string]string{
			"want": fmt.Sprintf("%d", payloadSize),
			"got":  fmt.Sprintf("%d", len(payload)),
		})
	}
	questID = binary.BigEndian.Uint64(payload[:8])
	copy(user[:], payload[8:])
	return questID, user, nil
}
