// Package ledger reads WaveWarz battle accounts from Solana.
package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the WaveWarz program on mainnet.
const DefaultProgramID = "9TUfEHvk5fN5vogtQyrefgNqzKy2Bqb4nWVhSFUg2fYo"

const battleSeed = "battle"

// DeriveBattleAddress returns the battle account PDA for battleID:
// seeds ["battle", u64 little-endian battle id] under programID.
func DeriveBattleAddress(programID solana.PublicKey, battleID uint64) (solana.PublicKey, error) {
	var idLE [8]byte
	binary.LittleEndian.PutUint64(idLE[:], battleID)

	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(battleSeed), idLE[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive battle PDA for %d: %w", battleID, err)
	}
	return addr, nil
}
