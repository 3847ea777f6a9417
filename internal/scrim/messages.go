package scrim

import (
	"fmt"
	"time"
)

const (
	slashCommandCreateDescription = "Schedule a scrim and post its signup message."
	slashCommandEndDescription    = "End the current scrim session."
	slashCommandCancelDescription = "Cancel the current scrim and delete its signup message."
	slashCommandUpdateDescription = "Resync roles and credit attendance for the current scrim."
	slashCommandWinDescription    = "Record a scrim win for a member."

	messageEphemeralWrongGuild        = ":warning: **This command cannot be used on this server.**"
	messageEphemeralUnknownCommand    = ":warning: **Unknown command.**"
	messageEphemeralSessionInProgress = ":warning: **A scrim session is already live. End or cancel it first.**"
	messageEphemeralNoLiveSession     = ":warning: **No scrim session is currently live.**"
	messageEphemeralInvalidStart      = ":warning: **The start time must be a unix timestamp in the future.**"
	messageEphemeralMissingOption     = ":warning: **A required option is missing.**"
	messageEphemeralCreateFailed      = ":warning: **Failed to schedule the scrim.**"
	messageEphemeralEndFailed         = ":warning: **Failed to end the scrim session.**"
	messageEphemeralCancelFailed      = ":warning: **Failed to cancel the scrim session.**"
	messageEphemeralUpdateFailed      = ":warning: **Failed to resync the scrim state.**"
	messageEphemeralWinFailed         = ":warning: **Failed to record the win.**"

	messageEphemeralEnded     = ":checkered_flag: **The scrim session was ended.**"
	messageEphemeralCancelled = ":wastebasket: **The scrim session was cancelled.**"
)

func createdEphemeral(name string, startAt time.Time) string {
	return fmt.Sprintf(":calendar: **%s** is scheduled for <t:%d:F>. Signup is open.", name, startAt.Unix())
}

func updatedEphemeral(registered, attended int) string {
	return fmt.Sprintf(":arrows_counterclockwise: Roles resynced. Credited %d registration(s), %d attendance(s).", registered, attended)
}

func winEphemeral(userID string, total int) string {
	return fmt.Sprintf(":trophy: <@%s> now has %d win(s).", userID, total)
}

func warningMessage(name string, startAt time.Time) string {
	return fmt.Sprintf(":alarm_clock: **%s** starts <t:%d:R>. Get ready!", name, startAt.Unix())
}

func startedMessage(name string) string {
	return fmt.Sprintf(":crossed_swords: **%s** has started. Join a voice channel to play!", name)
}

func endedMessage(name string) string {
	return fmt.Sprintf(":checkered_flag: **%s** is over. Thanks for playing!", name)
}

func resurrectedMessage(name string) string {
	return fmt.Sprintf(":recycle: **%s** was ended externally and has been restarted. Signups still count.", name)
}
