package camera

import (
	"fmt"
	"strings"
)

// Command is one of the operations the camera accepts.
type Command string

// Commands.
const (
	CommandWhitePhoto   Command = "WHITE_PHOTO"
	CommandRegularPhoto Command = "REGULAR_PHOTO" // historical alias of WHITE_PHOTO
	CommandGrowthPhoto  Command = "GROWTH_PHOTO"
	CommandNIRPhoto     Command = "NIR_PHOTO"
	CommandNDVIPhoto    Command = "NDVI_PHOTO"
	CommandLeafMask     Command = "LEAF_MASK"
	CommandNDVI         Command = "NDVI"
	CommandCalibrate    Command = "CALIBRATE"
	CommandUpdate       Command = "UPDATE"
)

// Commands returns every accepted command, aliases included.
func Commands() []Command {
	return []Command{
		CommandWhitePhoto,
		CommandRegularPhoto,
		CommandGrowthPhoto,
		CommandNIRPhoto,
		CommandNDVIPhoto,
		CommandLeafMask,
		CommandNDVI,
		CommandCalibrate,
		CommandUpdate,
	}
}

// ParseCommand resolves a command name case-insensitively and collapses
// aliases to their canonical form.
func ParseCommand(s string) (Command, error) {
	cmd := Command(strings.ToUpper(strings.TrimSpace(s)))
	switch cmd {
	case CommandRegularPhoto:
		return CommandWhitePhoto, nil
	case CommandWhitePhoto, CommandGrowthPhoto, CommandNIRPhoto,
		CommandNDVIPhoto, CommandLeafMask, CommandNDVI,
		CommandCalibrate, CommandUpdate:
		return cmd, nil
	}
	return "", NewError(ErrCodeUnknownCommand, fmt.Sprintf("unknown command %q", s), nil)
}
