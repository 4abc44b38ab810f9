package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	syncerrors "github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/errors"
)

const sourceName = "ledger"

// Winner is the decided side of a battle.
type Winner uint8

const (
	WinnerUndecided Winner = iota
	WinnerArtistA
	WinnerArtistB
)

func (w Winner) String() string {
	switch w {
	case WinnerArtistA:
		return "artist_a"
	case WinnerArtistB:
		return "artist_b"
	default:
		return "undecided"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (w Winner) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// LayoutVersion identifies the battle account layout a state was decoded from.
type LayoutVersion uint8

const LayoutV1 LayoutVersion = 1

// BattleState is the decoded ledger state of one battle account.
type BattleState struct {
	BattleID      uint64        `json:"battle_id"`
	ArtistAWallet string        `json:"artist_a_wallet"`
	ArtistBWallet string        `json:"artist_b_wallet"`
	ArtistAPool   uint64        `json:"artist_a_pool"`
	ArtistBPool   uint64        `json:"artist_b_pool"`
	ArtistASupply uint64        `json:"artist_a_supply"`
	ArtistBSupply uint64        `json:"artist_b_supply"`
	WinnerDecided bool          `json:"winner_decided"`
	Winner        Winner        `json:"winner"`
	StartTime     int64         `json:"start_time"`
	EndTime       int64         `json:"end_time"`
	IsActive      bool          `json:"is_active"`
	LayoutVersion LayoutVersion `json:"layout_version"`
}

// WinnerArtistA reports whether artist A won, or nil while undecided.
func (s *BattleState) WinnerArtistA() *bool {
	if !s.WinnerDecided {
		return nil
	}
	a := s.Winner == WinnerArtistA
	return &a
}

// Battle account layout v1, after the 8-byte account discriminator.
const (
	discriminatorLen = 8

	offWalletA  = 8
	offWalletB  = 40
	offPoolA    = 72
	offPoolB    = 80
	offSupplyA  = 88
	offSupplyB  = 96
	offDecided  = 104
	offWinnerA  = 105
	offStart    = 106
	offEnd      = 114
	offIsActive = 122

	layoutV1Len = 123
)

type layoutDecoder func(battleID uint64, data []byte) *BattleState

// DecodeBattleAccount decodes raw battle account bytes. It is the single
// entry point for every layout version.
func DecodeBattleAccount(battleID uint64, data []byte) (*BattleState, error) {
	decode, err := detectLayout(data)
	if err != nil {
		return nil, syncerrors.NewDecodeError(sourceName, fmt.Sprintf("battle %d", battleID), err)
	}
	return decode(battleID, data), nil
}

// detectLayout picks the decoder for data. Only v1 exists today; a new layout
// gets its own decoder and a branch here.
func detectLayout(data []byte) (layoutDecoder, error) {
	if len(data) < discriminatorLen {
		return nil, fmt.Errorf("account data too short: %d bytes", len(data))
	}
	if len(data) < layoutV1Len {
		return nil, fmt.Errorf("account data too short for layout v1: %d < %d bytes", len(data), layoutV1Len)
	}
	return decodeV1, nil
}

func decodeV1(battleID uint64, data []byte) *BattleState {
	state := &BattleState{
		BattleID:      battleID,
		ArtistAWallet: solana.PublicKeyFromBytes(data[offWalletA:offWalletB]).String(),
		ArtistBWallet: solana.PublicKeyFromBytes(data[offWalletB:offPoolA]).String(),
		ArtistAPool:   binary.LittleEndian.Uint64(data[offPoolA:offPoolB]),
		ArtistBPool:   binary.LittleEndian.Uint64(data[offPoolB:offSupplyA]),
		ArtistASupply: binary.LittleEndian.Uint64(data[offSupplyA:offSupplyB]),
		ArtistBSupply: binary.LittleEndian.Uint64(data[offSupplyB:offDecided]),
		WinnerDecided: data[offDecided] != 0,
		StartTime:     int64(binary.LittleEndian.Uint64(data[offStart:offEnd])),
		EndTime:       int64(binary.LittleEndian.Uint64(data[offEnd:offIsActive])),
		IsActive:      data[offIsActive] != 0,
		LayoutVersion: LayoutV1,
	}
	// The winner byte is meaningful only once the battle is decided.
	if state.WinnerDecided {
		if data[offWinnerA] != 0 {
			state.Winner = WinnerArtistA
		} else {
			state.Winner = WinnerArtistB
		}
	}
	return state
}
