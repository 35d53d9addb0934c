package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/service/client"
)

//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the current system status.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run("status", client.Status())
		},
	}

	armCmd = &cobra.Command{
		Use:       "arm home|away",
		Short:     "Arm the system at home or away.",
		Long:      "Arms the system. Arming from disarmed resets every sensor to inactive.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"home", "away"},
		RunE: func(_ *cobra.Command, args []string) error {
			armingStatus, err := domain.ParseArmingStatus(args[0])
			if err != nil {
				return err
			}

			if !armingStatus.IsArmed() {
				return fmt.Errorf("%w: use disarm instead", domain.ErrInvalidArmingStatus)
			}

			return run("arm", client.Arm(armingStatus))
		},
	}

	disarmCmd = &cobra.Command{
		Use:   "disarm",
		Short: "Disarm the system and clear the alarm.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run("disarm", client.Arm(domain.Disarmed))
		},
	}

	sensorCmd = &cobra.Command{
		Use:   "sensor",
		Short: "Manage sensors.",
	}

	sensorAddCmd = &cobra.Command{
		Use:   "add NAME DOOR|WINDOW|MOTION",
		Short: "Register a sensor.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Name and type.
		RunE: func(_ *cobra.Command, args []string) error {
			key, err := sensorKey(args)
			if err != nil {
				return err
			}

			return run("add sensor", client.AddSensor(key))
		},
	}

	sensorRemoveCmd = &cobra.Command{
		Use:   "remove NAME DOOR|WINDOW|MOTION",
		Short: "Unregister a sensor.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Name and type.
		RunE: func(_ *cobra.Command, args []string) error {
			key, err := sensorKey(args)
			if err != nil {
				return err
			}

			return run("remove sensor", client.RemoveSensor(key))
		},
	}

	sensorActivateCmd = &cobra.Command{
		Use:   "activate NAME DOOR|WINDOW|MOTION",
		Short: "Report a sensor as active.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Name and type.
		RunE: func(_ *cobra.Command, args []string) error {
			key, err := sensorKey(args)
			if err != nil {
				return err
			}

			return run("activate sensor", client.ChangeSensor(key, true))
		},
	}

	sensorDeactivateCmd = &cobra.Command{
		Use:   "deactivate NAME DOOR|WINDOW|MOTION",
		Short: "Report a sensor as inactive.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Name and type.
		RunE: func(_ *cobra.Command, args []string) error {
			key, err := sensorKey(args)
			if err != nil {
				return err
			}

			return run("deactivate sensor", client.ChangeSensor(key, false))
		},
	}

	imageCmd = &cobra.Command{
		Use:   "image FILE",
		Short: "Submit a camera frame for cat detection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			action, err := client.SubmitImage(args[0])
			if err != nil {
				return err
			}

			return run("process image", action)
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stream status changes until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Watch(ctx, &options)
		},
	}
)

// sensorKey parses NAME TYPE arguments.
func sensorKey(args []string) (domain.SensorKey, error) {
	sensorType, err := domain.ParseSensorType(args[1])
	if err != nil {
		return domain.SensorKey{}, err
	}

	key := domain.SensorKey{Name: args[0], Type: sensorType}

	return key, key.Validate()
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	sensorCmd.AddCommand(sensorAddCmd, sensorRemoveCmd, sensorActivateCmd, sensorDeactivateCmd)
}
