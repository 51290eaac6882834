// Package insights holds the client's typed options and well known paths.
package insights

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/insights-client/insights-client/pkg/connection"
	"github.com/kolide/kit/version"
	"github.com/peterbourgon/ff/v3"
	"github.com/pkg/errors"
)

const envVarPrefix = "INSIGHTS_CLIENT"

// Options is the set of options that may be configured for the client.
type Options struct {
	// ConfigFilePath is the INI file options were read from, if any.
	ConfigFilePath string

	Username   string
	Password   string
	AuthMethod string
	// BaseURL is host[:port]/path. Endpoint URLs left unset derive from it.
	BaseURL       string
	UploadURL     string
	APIURL        string
	BranchInfoURL string
	// CertVerify is "True", "False" or the path of a CA bundle.
	CertVerify string
	Proxy      string
	CertPath   string
	KeyPath    string
	Timeout    time.Duration

	DisplayName string
	Group       string

	// Retries is the number of upload attempts.
	Retries int
	// RetryInterval is the pause between upload attempts.
	RetryInterval time.Duration
	// Offline skips every call to the service that is not strictly needed.
	Offline bool
	// ForceReregister discards the machine id before registering.
	ForceReregister bool
	// BranchInfoFile, when set, receives the branch info JSON before upload.
	BranchInfoFile string

	StateDirectory string
	DatabasePath   string
	LogFilePath    string

	Verbose bool
	Quiet   bool
	Silent  bool

	// Args are the positional arguments left after the options.
	Args []string
}

// ConfigFilePath returns the INI file named on the command line, or the
// well known location when it exists. An empty string means no file.
func ConfigFilePath(args []string) string {
	for i, arg := range args {
		if (arg == "--conf" || arg == "-conf") && i+1 < len(args) {
			return strings.Trim(args[i+1], `"'`)
		}

		for _, prefix := range []string{"--conf=", "-conf="} {
			if strings.HasPrefix(arg, prefix) {
				return strings.Trim(strings.TrimPrefix(arg, prefix), `"'`)
			}
		}
	}

	if _, err := os.Stat(DefaultConfigFilePath); err == nil {
		return DefaultConfigFilePath
	}
	return ""
}

// ParseOptions parses command line flags, INSIGHTS_CLIENT_* environment
// variables and the [insights-client] section of the INI file, in that
// order of precedence.
func ParseOptions(subcommandName string, args []string) (*Options, error) {
	flagsetName := AppName
	if subcommandName != "" {
		flagsetName = fmt.Sprintf("%s %s", AppName, subcommandName)
	}
	flagset := flag.NewFlagSet(flagsetName, flag.ContinueOnError)
	flagset.SetOutput(io.Discard)

	var (
		flConfigFilePath  = flagset.String("conf", ConfigFilePath(args), "INI configuration file")
		flUsername        = flagset.String("username", "", "Username for BASIC authentication")
		flPassword        = flagset.String("password", "", "Password for BASIC authentication")
		flAuthMethod      = flagset.String("auth_method", string(connection.AuthBasic), "BASIC or CERT")
		flBaseURL         = flagset.String("base_url", DefaultBaseURL, "Service location as host[:port]/path")
		flUploadURL       = flagset.String("upload_url", "", "Upload endpoint (default: https://<base_url>/uploads)")
		flAPIURL          = flagset.String("api_url", "", "API endpoint (default: https://<base_url>)")
		flBranchInfoURL   = flagset.String("branch_info_url", "", "Branch info endpoint (default: https://<base_url>/v1/branch_info)")
		flCertVerify      = flagset.String("cert_verify", "True", "True, False, or the path of a CA bundle")
		flProxy           = flagset.String("proxy", "", "Proxy as scheme://[user:pass@]host:port, overrides HTTPS_PROXY")
		flCertPath        = flagset.String("cert_path", connection.DefaultCertPath, "Client certificate for CERT authentication")
		flKeyPath         = flagset.String("key_path", connection.DefaultKeyPath, "Client key for CERT authentication")
		flTimeout         = flagset.Duration("http_timeout", connection.DefaultTimeout, "Timeout for each registration or upload call")
		flDisplayName     = flagset.String("display_name", "", "Display name for this system")
		flGroup           = flagset.String("group", "", "Group to add this system to during registration")
		flRetries         = flagset.Int("retries", 1, "Number of upload attempts")
		flRetryInterval   = flagset.Duration("retry_interval", SleepTime, "Pause between upload attempts")
		flOffline         = flagset.Bool("offline", false, "Do not contact the service except to upload")
		flForceReregister = flagset.Bool("force_reregister", false, "Discard the machine id and register again")
		flBranchInfoFile  = flagset.String("branch_info_file", "", "Write branch info JSON to this file before uploading")
		flStateDirectory  = flagset.String("state_dir", DefaultStateDirectory, "Directory holding the machine id and registration markers")
		flDatabasePath    = flagset.String("db_path", DefaultDatabasePath, "Upload history database")
		flLogFilePath     = flagset.String("log_file", DefaultLogFilePath, "Agent log file, empty to disable")
		flVerbose         = flagset.Bool("verbose", false, "Log debug messages to the console")
		flQuiet           = flagset.Bool("quiet", false, "Only log errors to the console")
		flSilent          = flagset.Bool("silent", false, "Log nothing to the console")
		flVersion         = flagset.Bool("version", false, "Print version and exit")
	)

	ffOpts := []ff.Option{
		ff.WithConfigFileFlag("conf"),
		ff.WithConfigFileParser(iniParser),
		ff.WithIgnoreUndefined(true), // covers the config file _only_
		ff.WithEnvVarPrefix(envVarPrefix),
	}

	if err := ff.Parse(flagset, args, ffOpts...); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(flagset)
			return nil, NewInfoCmdError("--help")
		}
		return nil, errors.Wrap(err, "parsing options")
	}

	if *flVersion {
		version.PrintFull()
		return nil, NewInfoCmdError("--version")
	}

	if *flRetries < 1 {
		return nil, errors.Errorf("retries must be at least 1, got %d", *flRetries)
	}

	base := strings.TrimSuffix(strings.TrimPrefix(*flBaseURL, "https://"), "/")
	uploadURL := defaultString(*flUploadURL, "https://"+base+"/uploads")
	apiURL := defaultString(*flAPIURL, "https://"+base)
	branchInfoURL := defaultString(*flBranchInfoURL, "https://"+base+"/v1/branch_info")

	opts := &Options{
		ConfigFilePath:  *flConfigFilePath,
		Username:        *flUsername,
		Password:        *flPassword,
		AuthMethod:      *flAuthMethod,
		BaseURL:         base,
		UploadURL:       uploadURL,
		APIURL:          apiURL,
		BranchInfoURL:   branchInfoURL,
		CertVerify:      *flCertVerify,
		Proxy:           *flProxy,
		CertPath:        *flCertPath,
		KeyPath:         *flKeyPath,
		Timeout:         *flTimeout,
		DisplayName:     *flDisplayName,
		Group:           *flGroup,
		Retries:         *flRetries,
		RetryInterval:   *flRetryInterval,
		Offline:         *flOffline,
		ForceReregister: *flForceReregister,
		BranchInfoFile:  *flBranchInfoFile,
		StateDirectory:  *flStateDirectory,
		DatabasePath:    *flDatabasePath,
		LogFilePath:     *flLogFilePath,
		Verbose:         *flVerbose,
		Quiet:           *flQuiet,
		Silent:          *flSilent,
		Args:            flagset.Args(),
	}

	return opts, nil
}

// Settings converts the options into connection settings.
func (o *Options) Settings() connection.Settings {
	return connection.Settings{
		Username:      o.Username,
		Password:      o.Password,
		AuthMethod:    o.AuthMethod,
		UploadURL:     o.UploadURL,
		APIURL:        o.APIURL,
		BranchInfoURL: o.BranchInfoURL,
		CertVerify:    o.CertVerify,
		Proxy:         o.Proxy,
		CertPath:      o.CertPath,
		KeyPath:       o.KeyPath,
		DisplayName:   o.DisplayName,
		UserAgent:     UserAgent(),
		Timeout:       o.Timeout,
	}
}

// iniKeyAliases maps INI keys written by older clients to flag names.
var iniKeyAliases = map[string]string{
	"authmethod": "auth_method",
}

// iniParser feeds the [insights-client] section of an INI file to ff.
// Other sections are ignored.
func iniParser(r io.Reader, set func(name, value string) error) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}

	cfg, err := ini.Load(bytes.TrimSpace(raw))
	if err != nil {
		return errors.Wrap(err, "parsing config file")
	}

	section, err := cfg.GetSection(AppName)
	if err != nil {
		return nil
	}

	for _, key := range section.Keys() {
		name := key.Name()
		if alias, ok := iniKeyAliases[name]; ok {
			name = alias
		}
		if err := set(name, key.Value()); err != nil {
			return err
		}
	}
	return nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func usage(flagset *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "insights-client (version %s)\n", version.Version().Version)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Usage: %s [--option=value ...]\n", flagset.Name())
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Fprintf(os.Stderr, "  --%-20s %s\n", f.Name, f.Usage)
	})
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  All options can be set as environment variables using the following convention:\n")
	fmt.Fprintf(os.Stderr, "      %s_OPTION=value insights-client\n", envVarPrefix)
	fmt.Fprintf(os.Stderr, "\n")
}
