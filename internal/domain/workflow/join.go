package workflow

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SaveAndNotify runs save and notify concurrently and waits for both.
// One failed side is logged and tolerated; only a double failure is an error.
func SaveAndNotify(
	ctx context.Context,
	save func(ctx context.Context) (int64, error),
	notify func(ctx context.Context) error,
	log zerolog.Logger,
) (JoinResult, error) {
	var (
		result  JoinResult
		saveErr error
		pushErr error
		g       errgroup.Group
	)

	// Neither side returns its error to the group so one failure never cancels the other.
	g.Go(func() error {
		id, err := save(ctx)
		if err != nil {
			saveErr = err
			return nil
		}
		result.RecordID = id
		result.Saved = true
		return nil
	})
	g.Go(func() error {
		if err := notify(ctx); err != nil {
			pushErr = err
			return nil
		}
		result.Notified = true
		return nil
	})
	_ = g.Wait()

	if saveErr != nil && pushErr != nil {
		log.Error().AnErr("save_error", saveErr).AnErr("push_error", pushErr).Msg("database save and LINE push both failed")
		return result, WrapRetryable(errors.Join(saveErr, pushErr), ErrCodeDualWrite, "both database save and LINE push failed")
	}
	if saveErr != nil {
		result.SaveError = saveErr.Error()
		log.Error().Err(saveErr).Msg("database save failed, push delivered")
	}
	if pushErr != nil {
		result.PushError = pushErr.Error()
		log.Error().Err(pushErr).Msg("LINE push failed, record saved")
	}
	return result, nil
}
