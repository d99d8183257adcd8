package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PackageID is the published JailbreakGuard Move package.
const PackageID = "0x42418f800a71a69f701fe8daf1d0e3dc989561542827df23e88cdbaf3248a0d7"

// Payout states of a submission.
const (
	PayoutNone      = "none"
	PayoutPending   = "pending"
	PayoutSimulated = "simulated"
	PayoutExecuted  = "executed"
)

var hashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

var (
	ErrMissingSubmission = errors.New("hash or text is required")
	ErrInvalidHash       = errors.New("hash must be 64 lowercase hex characters")
)

// SubmissionRequest is the body of POST /submissions. Either Hash or Text must
// be set. Text is trimmed and lowercased before hashing, so a raw SHA-256 of
// "Hello World" computed client side does not match Text "Hello World".
type SubmissionRequest struct {
	PoolID             string `json:"pool_id"`
	SubmissionObjectID string `json:"submission_object_id"`
	OracleCapID        string `json:"oracle_cap_id"`
	Submitter          string `json:"submitter"`
	Hash               string `json:"hash"`
	Text               string `json:"text,omitempty"`
}

// Submission is a processed submission.
type Submission struct {
	ID                 int64     `json:"id"`
	PoolID             string    `json:"pool_id"`
	SubmissionObjectID string    `json:"submission_object_id"`
	OracleCapID        string    `json:"oracle_cap_id"`
	Submitter          string    `json:"submitter"`
	Hash               string    `json:"hash"`
	Winner             bool      `json:"winner"`
	Payout             string    `json:"payout"`
	Digest             string    `json:"digest,omitempty"`
	PayoutError        string    `json:"payout_error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// HashText returns the hex SHA-256 of the trimmed, lowercased submission text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}

// Verifier decides whether a submission wins its bounty.
type Verifier interface {
	Verify(ctx context.Context, hash string) (bool, error)
}

// HashListVerifier accepts a configured set of submission hashes. It is a
// placeholder until bounties are adjudicated by a real oracle.
type HashListVerifier struct {
	accepted map[string]struct{}
}

func NewHashListVerifier(hashes []string) *HashListVerifier {
	v := &HashListVerifier{accepted: make(map[string]struct{}, len(hashes))}
	for _, h := range hashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			v.accepted[h] = struct{}{}
		}
	}
	return v
}

func (v *HashListVerifier) Verify(_ context.Context, hash string) (bool, error) {
	_, ok := v.accepted[hash]
	return ok, nil
}

// MoveCall is one Move function call of a transaction.
type MoveCall struct {
	Target    string   `json:"target"`
	Arguments []string `json:"arguments"`
}

// Transaction is an unsigned programmable transaction.
type Transaction struct {
	MoveCalls []MoveCall `json:"move_calls"`
}

// PayoutTransaction records the success of a submission and mints its badge.
func PayoutTransaction(poolID, submissionObjectID, oracleCapID string) Transaction {
	return Transaction{MoveCalls: []MoveCall{{
		Target:    PackageID + "::bounty::record_success_with_badge",
		Arguments: []string{poolID, submissionObjectID, oracleCapID},
	}}}
}

// Receipt is returned by a signer once the transaction is executed.
type Receipt struct {
	Digest string `json:"digest"`
}

// Signer signs and executes transactions on behalf of the oracle.
type Signer interface {
	Sign(ctx context.Context, tx Transaction) (Receipt, error)
}

// Oracle verifies submissions and triggers payouts for winners.
type Oracle struct {
	verifier Verifier
	signer   Signer
	store    SubmissionStore
	logger   zerolog.Logger
}

// NewOracle creates an oracle. signer may be nil, in which case winning
// payouts are only simulated.
func NewOracle(verifier Verifier, signer Signer, store SubmissionStore, logger zerolog.Logger) *Oracle {
	return &Oracle{verifier: verifier, signer: signer, store: store, logger: logger}
}

// Process verifies req, pays out winners and stores the result. A winner is
// stored as pending before the payout is signed, so a resubmission of the
// same hash to the same pool fails with ErrDuplicateSubmission and is never
// paid twice.
func (o *Oracle) Process(ctx context.Context, req SubmissionRequest) (*Submission, error) {
	hash := strings.ToLower(strings.TrimSpace(req.Hash))
	if hash == "" {
		if strings.TrimSpace(req.Text) == "" {
			return nil, ErrMissingSubmission
		}
		hash = HashText(req.Text)
	}
	if !hashRe.MatchString(hash) {
		return nil, ErrInvalidHash
	}

	logger := o.logger.With().Str("pool_id", req.PoolID).Str("hash", hash[:16]).Logger()
	logger.Info().Msg("Processing submission")

	winner, err := o.verifier.Verify(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("verify submission: %w", err)
	}
	submissionsTotal.WithLabelValues(fmt.Sprint(winner)).Inc()

	sub := &Submission{
		PoolID:             req.PoolID,
		SubmissionObjectID: req.SubmissionObjectID,
		OracleCapID:        req.OracleCapID,
		Submitter:          req.Submitter,
		Hash:               hash,
		Winner:             winner,
		Payout:             PayoutNone,
	}
	if !winner {
		if err := o.store.Create(ctx, sub); err != nil {
			return nil, err
		}
		return sub, nil
	}

	sub.Payout = PayoutPending
	if err := o.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	logger.Info().Msg("Winner detected, triggering payout")
	o.payout(ctx, sub, logger)

	if err := o.store.UpdatePayout(ctx, sub); err != nil {
		logger.Error().Err(err).Str("payout", sub.Payout).Str("digest", sub.Digest).Msg("Failed to record payout")
		return nil, err
	}
	return sub, nil
}

// payout executes the payout transaction, falling back to a simulated payout
// when there is no signer, an object id is missing or signing fails.
func (o *Oracle) payout(ctx context.Context, sub *Submission, logger zerolog.Logger) {
	sub.Payout = PayoutSimulated
	defer func() { payoutsTotal.WithLabelValues(sub.Payout).Inc() }()

	if o.signer == nil {
		logger.Info().Msg("No signer configured, simulating payout")
		return
	}
	if sub.PoolID == "" || sub.SubmissionObjectID == "" || sub.OracleCapID == "" {
		logger.Warn().Msg("Missing pool, submission or oracle cap id, simulating payout")
		return
	}

	receipt, err := o.signer.Sign(ctx, PayoutTransaction(sub.PoolID, sub.SubmissionObjectID, sub.OracleCapID))
	if err != nil {
		logger.Error().Err(err).Msg("Payout failed, falling back to simulation")
		sub.PayoutError = err.Error()
		return
	}
	sub.Payout = PayoutExecuted
	sub.Digest = receipt.Digest
	logger.Info().Str("digest", receipt.Digest).Msg("Payout successful")
}
