package tui

import (
	"github.com/charmbracelet/huh"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

func CreateLoggingForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("level").
				Title("Log Level").
				Description("Minimum log level to display").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&values.LogLevel),

			huh.NewSelect[string]().
				Key("format").
				Title("Log Format").
				Description("Output format for logs").
				Options(
					huh.NewOption("Pretty (human-readable)", "pretty"),
					huh.NewOption("JSON (structured)", "json"),
				).
				Value(&values.LogFormat),
		),
	).WithTheme(GetTheme())
}

func CreateTransportForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("max_auth_rounds").
				Title("Credential Rounds").
				Description("Credentials asked for before giving up (1-10)").
				Value(&values.MaxAuthRounds).
				Placeholder("3").
				Validate(ValidateIntRange(1, 10)),

			huh.NewInput().
				Key("connect_retries").
				Title("Connect Retries").
				Description("Retries after a transient connection failure (0-20)").
				Value(&values.ConnectRetries).
				Placeholder("3").
				Validate(ValidateIntRange(0, 20)),

			huh.NewInput().
				Key("retry_initial_interval").
				Title("Initial Backoff").
				Description("Delay before the first retry (e.g., 500ms)").
				Value(&values.RetryInitialInterval).
				Placeholder("500ms").
				Validate(ValidateDuration),

			huh.NewInput().
				Key("retry_max_interval").
				Title("Max Backoff").
				Description("Upper bound for the delay between retries").
				Value(&values.RetryMaxInterval).
				Placeholder("10s").
				Validate(ValidateDuration),
		),
	).WithTheme(GetTheme())
}

func CreateFetchForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("prune").
				Title("Prune").
				Description("Delete tracking refs whose remote branch is gone").
				Value(&values.Prune),

			huh.NewConfirm().
				Key("progress").
				Title("Show Progress").
				Description("Render a transfer progress bar").
				Value(&values.Progress),

			huh.NewSelect[string]().
				Key("autotag").
				Title("Tags").
				Description("Tag policy applied to every fetch").
				Options(
					huh.NewOption("Per remote", ""),
					huh.NewOption("Auto (tags of fetched commits)", "auto"),
					huh.NewOption("All", "all"),
					huh.NewOption("None", "none"),
				).
				Value(&values.Autotag),
		),
	).WithTheme(GetTheme())
}

func GetFormForCategory(category string, values *ConfigValues) *huh.Form {
	switch category {
	case "logging":
		return CreateLoggingForm(values)
	case "transport":
		return CreateTransportForm(values)
	case "fetch":
		return CreateFetchForm(values)
	default:
		return nil
	}
}

// CredentialValues holds the answers of the credential forms
type CredentialValues struct {
	Username       string
	Password       string
	PrivateKeyPath string
	Passphrase     string
}

func CreateKindForm(ch domain.Challenge, kinds []domain.CredentialKind, kind *domain.CredentialKind) *huh.Form {
	options := make([]huh.Option[domain.CredentialKind], 0, len(kinds))
	for _, k := range kinds {
		options = append(options, huh.NewOption(kindLabels[k], k))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[domain.CredentialKind]().
				Key("kind").
				Title("Authentication").
				Description(ch.URL).
				Options(options...).
				Value(kind),
		),
	).WithTheme(GetTheme())
}

func CreatePlaintextForm(ch domain.Challenge, values *CredentialValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("username").
				Title("Username").
				Description(ch.URL).
				Value(&values.Username).
				Validate(ValidateRequired),

			huh.NewInput().
				Key("password").
				Title("Password").
				Value(&values.Password).
				EchoMode(huh.EchoModePassword),
		),
	).WithTheme(GetTheme())
}

func CreateSSHKeyForm(ch domain.Challenge, values *CredentialValues) *huh.Form {
	if values.Username == "" {
		values.Username = "git"
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("username").
				Title("Username").
				Description(ch.URL).
				Value(&values.Username).
				Validate(ValidateRequired),

			huh.NewInput().
				Key("private_key").
				Title("Private Key").
				Description("Path to the private key file").
				Value(&values.PrivateKeyPath).
				Placeholder("~/.ssh/id_ed25519").
				Validate(ValidateRequired),

			huh.NewInput().
				Key("passphrase").
				Title("Passphrase").
				Description("Leave empty for unencrypted keys").
				Value(&values.Passphrase).
				EchoMode(huh.EchoModePassword),
		),
	).WithTheme(GetTheme())
}

var kindLabels = map[domain.CredentialKind]string{
	domain.CredentialPlaintext: "Username and password",
	domain.CredentialSSHKey:    "SSH key file",
	domain.CredentialDefault:   "SSH agent / default credentials",
}
