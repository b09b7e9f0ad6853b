package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/vitalguard/internal/api/devices"
	"github.com/good-yellow-bee/vitalguard/internal/models"
)

var deviceImportFile string

// deviceFile is the YAML layout accepted by "device import".
type deviceFile struct {
	Devices []deviceSpec `yaml:"devices"`
}

type deviceSpec struct {
	DeviceID   string               `yaml:"device_id"`
	Name       string               `yaml:"name"`
	UserID     string               `yaml:"user_id"`
	Patient    patientSpec          `yaml:"patient"`
	Thresholds *models.ThresholdSet `yaml:"thresholds"`
}

type patientSpec struct {
	Name             string   `yaml:"name"`
	Age              int      `yaml:"age"`
	MedicalHistory   []string `yaml:"medical_history"`
	Medications      []string `yaml:"medications"`
	EmergencyContact struct {
		Name         string `yaml:"name"`
		Phone        string `yaml:"phone"`
		Email        string `yaml:"email"`
		Relationship string `yaml:"relationship"`
	} `yaml:"emergency_contact"`
}

func (s deviceSpec) device(now time.Time) *models.Device {
	return &models.Device{
		ID:       uuid.New().String(),
		DeviceID: strings.TrimSpace(s.DeviceID),
		Name:     strings.TrimSpace(s.Name),
		UserID:   strings.TrimSpace(s.UserID),
		Patient: models.Patient{
			Name:           s.Patient.Name,
			Age:            s.Patient.Age,
			MedicalHistory: s.Patient.MedicalHistory,
			Medications:    s.Patient.Medications,
			EmergencyContact: models.EmergencyContact{
				Name:         s.Patient.EmergencyContact.Name,
				Phone:        s.Patient.EmergencyContact.Phone,
				Email:        s.Patient.EmergencyContact.Email,
				Relationship: s.Patient.EmergencyContact.Relationship,
			},
		},
		Thresholds: s.Thresholds,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// deviceCmd represents the device command group
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Device registry commands",
	Long: `Commands for the device registry. They operate directly on the
database and are intended for provisioning outside of the API.`,
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		_, store, err := openStore(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.Devices().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}

		out := cmd.OutOrStdout()
		if output == "json" {
			return printJSON(out, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No devices found.")
			return nil
		}

		fmt.Fprintf(out, "\n%-20s  %-24s  %-24s  %-7s  %-8s  %s\n",
			"DEVICE", "NAME", "PATIENT", "ONLINE", "BATTERY", "LAST SEEN")
		fmt.Fprintln(out, strings.Repeat("-", 110))
		for _, d := range list {
			battery := "-"
			if d.Status.BatteryLevel != nil {
				battery = fmt.Sprintf("%.0f%%", *d.Status.BatteryLevel)
				if d.Status.BatteryLow {
					battery += "!"
				}
			}
			lastSeen := "never"
			if d.Status.LastSeen != nil {
				lastSeen = d.Status.LastSeen.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-20s  %-24s  %-24s  %-7t  %-8s  %s\n",
				d.DeviceID, d.Name, d.Patient.Name, d.Status.Online, battery, lastSeen)
		}
		fmt.Fprintf(out, "\nTotal: %d device(s)\n", len(list))
		return nil
	},
}

var deviceImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Register devices from a YAML file",
	Long: `Register every device listed in a YAML file. Devices that are already
registered are skipped.

Example file:
  devices:
    - device_id: watch-17
      name: Ward 3 Bed 2
      user_id: u-1002
      patient:
        name: Jane Doe
        age: 81
        emergency_contact:
          name: John Doe
          phone: "+15550100"
          email: john@example.com
      thresholds:
        max_heart_rate: 110

Example:
  vitalctl device import -f devices.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deviceImportFile == "" {
			return fmt.Errorf("--file is required")
		}
		data, err := os.ReadFile(deviceImportFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", deviceImportFile, err)
		}
		var file deviceFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse %s: %w", deviceImportFile, err)
		}

		// Validate the whole file before writing anything.
		for i, spec := range file.Devices {
			if err := devices.ValidateDeviceID(spec.DeviceID); err != nil {
				return fmt.Errorf("device %d: %w", i+1, err)
			}
			if err := devices.ValidateName(spec.Name); err != nil {
				return fmt.Errorf("device %s: %w", spec.DeviceID, err)
			}
			if err := devices.ValidateThresholds(spec.Thresholds); err != nil {
				return fmt.Errorf("device %s: %w", spec.DeviceID, err)
			}
		}

		logger := newLogger()
		defer logger.Sync()

		_, store, err := openStore(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		now := time.Now().UTC()
		created, skipped := 0, 0
		for _, spec := range file.Devices {
			d := spec.device(now)
			existing, err := store.Devices().GetByDeviceID(ctx, d.DeviceID)
			if err != nil {
				return fmt.Errorf("look up %s: %w", d.DeviceID, err)
			}
			if existing != nil {
				skipped++
				fmt.Fprintf(out, "skip    %s (already registered)\n", d.DeviceID)
				continue
			}
			if err := store.Devices().Create(ctx, d); err != nil {
				return fmt.Errorf("register %s: %w", d.DeviceID, err)
			}
			created++
			fmt.Fprintf(out, "created %s\n", d.DeviceID)
		}
		fmt.Fprintf(out, "\nRegistered %d device(s), skipped %d\n", created, skipped)
		return nil
	},
}

func init() {
	deviceImportCmd.Flags().StringVarP(&deviceImportFile, "file", "f", "", "YAML file with devices (required)")

	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceImportCmd)
	rootCmd.AddCommand(deviceCmd)
}
