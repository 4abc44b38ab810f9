package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	syncerrors "github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/errors"
)

// MaxBatchSize is the getMultipleAccounts account limit.
const MaxBatchSize = 100

const defaultMaxParallel = 4

// IsNotFound reports whether err means the battle account does not exist.
func IsNotFound(err error) bool {
	return syncerrors.IsCode(err, syncerrors.ErrCodeNotFound)
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	ProgramID    solana.PublicKey
	MaxBatchSize int // accounts per round trip, capped at MaxBatchSize
	MaxParallel  int // concurrent round trips
	Retry        *syncerrors.RetryConfig
}

// BatchResult is the merged outcome of FetchBatch. Absent accounts appear in
// neither map; malformed accounts appear only in Failures.
type BatchResult struct {
	States     map[uint64]*BattleState
	Failures   map[uint64]error
	RoundTrips int
}

// Reader resolves battle ids to decoded ledger state.
type Reader struct {
	client      AccountClient
	programID   solana.PublicKey
	batchSize   int
	maxParallel int
	retry       *syncerrors.RetryConfig
	logger      zerolog.Logger
}

// NewReader creates a Reader over client.
func NewReader(client AccountClient, cfg ReaderConfig, logger zerolog.Logger) (*Reader, error) {
	if client == nil {
		return nil, fmt.Errorf("account client is required")
	}
	if cfg.ProgramID.IsZero() {
		return nil, fmt.Errorf("program id is required")
	}
	batchSize := cfg.MaxBatchSize
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	parallel := cfg.MaxParallel
	if parallel <= 0 {
		parallel = defaultMaxParallel
	}
	retry := cfg.Retry
	if retry == nil {
		retry = syncerrors.DefaultRetryConfig()
	}

	return &Reader{
		client:      client,
		programID:   cfg.ProgramID,
		batchSize:   batchSize,
		maxParallel: parallel,
		retry:       retry,
		logger:      logger.With().Str("component", "ledger_reader").Logger(),
	}, nil
}

// FetchOne reads and decodes a single battle account.
func (r *Reader) FetchOne(ctx context.Context, battleID uint64) (*BattleState, error) {
	addr, err := DeriveBattleAddress(r.programID, battleID)
	if err != nil {
		return nil, syncerrors.NewInternalError(sourceName, "failed to derive battle address", err)
	}

	var data []byte
	err = syncerrors.RetryWithConfig(ctx, func() error {
		var callErr error
		data, callErr = r.client.GetAccountData(ctx, addr)
		if callErr != nil {
			return syncerrors.WrapSyncError(callErr, syncerrors.ErrCodeTransport, sourceName,
				fmt.Sprintf("failed to read battle %d", battleID))
		}
		return nil
	}, r.retry)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, syncerrors.NewNotFoundError(sourceName, fmt.Sprintf("battle %d account does not exist", battleID))
	}
	return DecodeBattleAccount(battleID, data)
}

type chunk struct {
	ids   []uint64
	addrs []solana.PublicKey
	data  [][]byte
}

// FetchBatch reads many battle accounts. Ids are de-duplicated and split into
// chunks of at most the batch size, which are fetched concurrently. A
// transport failure of any chunk, after one retry, fails the whole call.
func (r *Reader) FetchBatch(ctx context.Context, battleIDs []uint64) (*BatchResult, error) {
	result := &BatchResult{
		States:   make(map[uint64]*BattleState),
		Failures: make(map[uint64]error),
	}

	ids := dedupe(battleIDs)
	if len(ids) == 0 {
		return result, nil
	}

	chunks := make([]*chunk, 0, (len(ids)+r.batchSize-1)/r.batchSize)
	for start := 0; start < len(ids); start += r.batchSize {
		end := min(start+r.batchSize, len(ids))
		c := &chunk{ids: ids[start:end], addrs: make([]solana.PublicKey, 0, end-start)}
		for _, id := range c.ids {
			addr, err := DeriveBattleAddress(r.programID, id)
			if err != nil {
				return nil, syncerrors.NewInternalError(sourceName, "failed to derive battle address", err)
			}
			c.addrs = append(c.addrs, addr)
		}
		chunks = append(chunks, c)
	}
	result.RoundTrips = len(chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxParallel)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			return syncerrors.RetryWithConfig(gctx, func() error {
				data, err := r.client.GetMultipleAccountData(gctx, c.addrs)
				if err != nil {
					return syncerrors.WrapSyncError(err, syncerrors.ErrCodeTransport, sourceName,
						fmt.Sprintf("batch read failed (chunk %d of %d)", i+1, len(chunks)))
				}
				if len(data) != len(c.addrs) {
					return syncerrors.NewTransportError(sourceName,
						fmt.Sprintf("batch read returned %d accounts for %d addresses", len(data), len(c.addrs)), nil)
				}
				c.data = data
				return nil
			}, r.retry)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge by battle id; chunk completion order never matters.
	for _, c := range chunks {
		for j, id := range c.ids {
			raw := c.data[j]
			if raw == nil {
				continue
			}
			state, err := DecodeBattleAccount(id, raw)
			if err != nil {
				result.Failures[id] = err
				r.logger.Warn().Uint64("battle_id", id).Err(err).Msg("failed to decode battle account")
				continue
			}
			result.States[id] = state
		}
	}

	r.logger.Debug().
		Int("requested", len(ids)).
		Int("decoded", len(result.States)).
		Int("failures", len(result.Failures)).
		Int("round_trips", result.RoundTrips).
		Msg("batch read complete")
	return result, nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
