package db

import (
	"context"
	"fmt"
	"time"
)

// notifyFunctionSQL is the schedule-change trigger function with the near
// horizon injected as whole seconds. Must stay in sync with the version the
// migration installs; SetNotifyHorizon replaces that body with the
// configured horizon.
const notifyFunctionSQL = `
CREATE OR REPLACE FUNCTION notify_schedule_change() RETURNS trigger AS $$
DECLARE
    rec notification_schedule;
BEGIN
    IF TG_OP = 'DELETE' THEN
        rec := OLD;
    ELSE
        rec := NEW;
    END IF;

    -- Rows outside the near horizon cannot move the scheduler's current
    -- wait target; suppressing them avoids wake-up storms during rebuilds.
    IF rec.due_time > now() + make_interval(secs => %d) THEN
        RETURN NULL;
    END IF;

    PERFORM pg_notify('schedule_changed', json_build_object(
        'op', TG_OP,
        'game_id', rec.game_id,
        'due_time', to_char(rec.due_time, 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
    )::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql`

// renderNotifyFunction builds the CREATE OR REPLACE statement for the given
// horizon. Non-positive horizons fall back to the migration default of ten
// minutes.
func renderNotifyFunction(horizon time.Duration) string {
	secs := int64(horizon.Seconds())
	if secs <= 0 {
		secs = 600
	}
	return fmt.Sprintf(notifyFunctionSQL, secs)
}

// SetNotifyHorizon re-renders the schedule trigger function so its near
// horizon matches the configured value. Run after migrations; CREATE OR
// REPLACE swaps the function under the existing trigger.
func (p *Pool) SetNotifyHorizon(ctx context.Context, horizon time.Duration) error {
	if _, err := p.Exec(ctx, renderNotifyFunction(horizon)); err != nil {
		return fmt.Errorf("set notify horizon: %w", err)
	}
	return nil
}
