package tools

import (
	"context"
	"fmt"
	"strings"
)

var approvedSoftware = map[string]bool{
	"office365": true,
	"zoom":      true,
	"slack":     true,
	"chrome":    true,
	"vscode":    true,
}

// RegisterRemediationTools installs the built-in remediation actions. The
// executors are simulated; a production deployment swaps the handlers for
// endpoint-management integrations behind the same names.
func RegisterRemediationTools(registry *Registry) {
	registry.Register("reset_password", "Reset a user's password to a temporary one", resetPassword)
	registry.Register("unlock_account", "Unlock a locked user account", unlockAccount)
	registry.Register("enable_mfa", "Enroll a user in multi-factor authentication", enableMFA)
	registry.Register("push_vpn_config", "Push the current VPN configuration to a device", pushVPNConfig)
	registry.Register("reset_network_adapter", "Reset a device's network adapter", resetNetworkAdapter)
	registry.Register("install_software", "Install software from the approved catalog", installSoftware)
	registry.Register("repair_application", "Run a repair install for an application", repairApplication)
	registry.Register("run_diagnostic", "Run the device diagnostic suite", runDiagnostic)
}

func resetPassword(ctx context.Context, parameters map[string]any) (string, error) {
	target := stringParam(parameters, "user_email", "user_id")
	return fmt.Sprintf("temporary password issued for %s, must change on first login", orUnknown(target)), nil
}

func unlockAccount(ctx context.Context, parameters map[string]any) (string, error) {
	target := stringParam(parameters, "user_email", "user_id")
	return fmt.Sprintf("account %s unlocked", orUnknown(target)), nil
}

func enableMFA(ctx context.Context, parameters map[string]any) (string, error) {
	method, _ := parameters["method"].(string)
	if method == "" {
		method = "authenticator"
	}
	return fmt.Sprintf("MFA enrollment started via %s", method), nil
}

func pushVPNConfig(ctx context.Context, parameters map[string]any) (string, error) {
	return "VPN configuration pushed, deployment pending", nil
}

func resetNetworkAdapter(ctx context.Context, parameters map[string]any) (string, error) {
	device := stringParam(parameters, "device_id")
	if device == "" {
		return "", fmt.Errorf("device_id required")
	}
	return fmt.Sprintf("network adapter reset command sent to %s", device), nil
}

func installSoftware(ctx context.Context, parameters map[string]any) (string, error) {
	softwareID := stringParam(parameters, "software_id")
	if !approvedSoftware[strings.ToLower(softwareID)] {
		return "", fmt.Errorf("software %q not in approved catalog", softwareID)
	}
	return fmt.Sprintf("installation of %s queued", softwareID), nil
}

func repairApplication(ctx context.Context, parameters map[string]any) (string, error) {
	app := stringParam(parameters, "app_name")
	return fmt.Sprintf("repair for %s initiated", orUnknown(app)), nil
}

func runDiagnostic(ctx context.Context, parameters map[string]any) (string, error) {
	device := stringParam(parameters, "device_id")
	return fmt.Sprintf("diagnostic completed for %s: cpu 35%%, memory 62%%, disk 45GB free, network connected", orUnknown(device)), nil
}

func stringParam(parameters map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := parameters[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown target"
	}
	return value
}
