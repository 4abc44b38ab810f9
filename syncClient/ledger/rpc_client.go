package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// AccountClient reads raw account data. A missing account is reported as a
// nil entry, never as an error.
type AccountClient interface {
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
	GetMultipleAccountData(ctx context.Context, accounts []solana.PublicKey) ([][]byte, error)
}

// RPCClient is a pool of Solana RPC endpoints used round-robin with failover.
type RPCClient struct {
	clients        []*rpc.Client
	index          uint64
	mu             sync.RWMutex
	commitment     rpc.CommitmentType
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// NewRPCClient creates a client pool from rpcURLs. Endpoints that fail the
// health probe are skipped.
func NewRPCClient(ctx context.Context, rpcURLs []string, requestTimeout time.Duration, logger zerolog.Logger) (*RPCClient, error) {
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}

	log := logger.With().Str("component", "solana_rpc_client").Logger()
	clients := make([]*rpc.Client, 0, len(rpcURLs))

	for _, url := range rpcURLs {
		client := rpc.New(url)

		probeCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		health, err := client.GetHealth(probeCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to connect to RPC endpoint, skipping")
			continue
		}
		if health != "ok" {
			log.Warn().Str("url", url).Str("health", health).Msg("node is not healthy, skipping")
			continue
		}

		clients = append(clients, client)
		log.Info().Str("url", url).Msg("connected to RPC endpoint")
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("failed to connect to any valid RPC endpoints")
	}

	return &RPCClient{
		clients:        clients,
		commitment:     rpc.CommitmentConfirmed,
		requestTimeout: requestTimeout,
		logger:         log,
	}, nil
}

// executeWithFailover runs fn against each endpoint in turn until one succeeds.
// Every attempt gets its own request timeout.
func (rc *RPCClient) executeWithFailover(ctx context.Context, operation string, fn func(context.Context, *rpc.Client) error) error {
	rc.mu.RLock()
	clients := rc.clients
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return fmt.Errorf("no RPC clients available for %s", operation)
	}

	var lastErr error
	maxAttempts := len(clients)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		index := atomic.AddUint64(&rc.index, 1) - 1
		client := clients[index%uint64(len(clients))]

		callCtx, cancel := context.WithTimeout(ctx, rc.requestTimeout)
		err := fn(callCtx, client)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		rc.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	return errors.Wrapf(lastErr, "operation %s failed after trying %d endpoints", operation, maxAttempts)
}

// GetAccountData returns the raw data of account, or nil when it does not exist.
func (rc *RPCClient) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	var data []byte
	err := rc.executeWithFailover(ctx, "get_account_info", func(ctx context.Context, client *rpc.Client) error {
		out, err := client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rc.commitment,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			data = nil
			return nil
		}
		if err != nil {
			return err
		}
		data = accountBytes(out.Value)
		return nil
	})
	return data, err
}

// GetMultipleAccountData returns the raw data of each account in order, with
// nil entries for accounts that do not exist.
func (rc *RPCClient) GetMultipleAccountData(ctx context.Context, accounts []solana.PublicKey) ([][]byte, error) {
	var out [][]byte
	err := rc.executeWithFailover(ctx, "get_multiple_accounts", func(ctx context.Context, client *rpc.Client) error {
		res, err := client.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rc.commitment,
		})
		if err != nil {
			return err
		}
		if len(res.Value) != len(accounts) {
			return fmt.Errorf("rpc returned %d accounts for %d addresses", len(res.Value), len(accounts))
		}
		out = make([][]byte, len(accounts))
		for i, acc := range res.Value {
			out[i] = accountBytes(acc)
		}
		return nil
	})
	return out, err
}

func accountBytes(acc *rpc.Account) []byte {
	if acc == nil || acc.Data == nil {
		return nil
	}
	return acc.Data.GetBinary()
}
