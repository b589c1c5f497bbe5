package history

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func TestSnowflakeAtRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	got, err := discordgo.SnowflakeTimestamp(snowflakeAt(at))
	if err != nil {
		t.Fatalf("parse snowflake: %v", err)
	}
	if !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}
}

func TestSnowflakeAtClampsPreEpoch(t *testing.T) {
	at := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	if id := snowflakeAt(at); id != "0" {
		t.Fatalf("pre-epoch instants must clamp to 0, got %s", id)
	}
}

func TestClassifyPermissionErrors(t *testing.T) {
	for _, code := range []int{
		discordgo.ErrCodeUnknownChannel,
		discordgo.ErrCodeMissingAccess,
		discordgo.ErrCodeMissingPermissions,
	} {
		err := classify(&discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: code}})
		if !errors.Is(err, ErrChannelUnreachable) {
			t.Fatalf("code %d: expected ErrChannelUnreachable, got %v", code, err)
		}
	}
}

func TestClassifyTransientErrors(t *testing.T) {
	err := classify(errors.New("connection reset"))
	if !errors.Is(err, ErrHistoryFetchFailed) {
		t.Fatalf("expected ErrHistoryFetchFailed, got %v", err)
	}
	err = classify(&discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: 0}})
	if !errors.Is(err, ErrHistoryFetchFailed) {
		t.Fatalf("expected ErrHistoryFetchFailed for unclassified REST error, got %v", err)
	}
}
