package config

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/anchore/forbiddenapis/forbiddenapis/collect"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter"
	"github.com/anchore/forbiddenapis/forbiddenapis/signature"
	"github.com/anchore/forbiddenapis/internal"
)

var ErrApplicationConfigNotFound = fmt.Errorf("application config not found")

type defaultValueLoader interface {
	loadDefaultValues(*viper.Viper)
}

type parser interface {
	parseConfigValues() error
}

type Application struct {
	ConfigPath          string                       `yaml:",omitempty" json:"configPath"` // the location where the application config was read from (either from -c or discovered while loading)
	Verbosity           uint                         `yaml:"verbosity,omitempty" json:"verbosity" mapstructure:"verbosity"`
	Output              string                       `yaml:"output" json:"output" mapstructure:"output"` // -o, the presenter hint string to use for report formatting
	PresenterOpt        presenter.Option             `yaml:"-" json:"-"`
	Quiet               bool                         `yaml:"quiet" json:"quiet" mapstructure:"quiet"` // -q, indicates to not show any status output to stderr
	CliOptions          CliOnlyOptions               `yaml:"-" json:"-"`
	Classpath           []string                     `yaml:"classpath" json:"classpath" mapstructure:"classpath"`
	Dir                 string                       `yaml:"dir" json:"dir" mapstructure:"dir"` // compiled classes, scanned with **/*.class
	Classes             []collect.FileSet            `yaml:"classes" json:"classes" mapstructure:"classes"`
	ClassFiles          []string                     `yaml:"class-files" json:"class-files" mapstructure:"class-files"`
	JavaHome            string                       `yaml:"java-home" json:"java-home" mapstructure:"java-home"`
	Signatures          string                       `yaml:"signatures" json:"signatures" mapstructure:"signatures"` // inline signature text
	SignaturesFiles     []string                     `yaml:"signatures-files" json:"signatures-files" mapstructure:"signatures-files"`
	SignaturesFileSets  []collect.FileSet            `yaml:"signatures-file-sets" json:"signatures-file-sets" mapstructure:"signatures-file-sets"`
	Bundled             []string                     `yaml:"bundled" json:"bundled" mapstructure:"bundled"` // --bundled, bundled signature names without their own target version
	BundledSignatures   []signature.BundledReference `yaml:"bundled-signatures" json:"bundled-signatures" mapstructure:"bundled-signatures"`
	SuppressAnnotations []string                     `yaml:"suppress-annotations" json:"suppress-annotations" mapstructure:"suppress-annotations"`
	TargetVersion       string                       `yaml:"target-version" json:"target-version" mapstructure:"target-version"`
	Log                 logging                      `yaml:"log" json:"log" mapstructure:"log"`
	Dev                 development                  `yaml:"dev" json:"dev" mapstructure:"dev"`

	FailurePolicy `yaml:",inline" mapstructure:",squash"`
}

func newApplicationConfig(v *viper.Viper, cliOpts CliOnlyOptions) *Application {
	config := &Application{
		CliOptions: cliOpts,
	}
	config.loadDefaultValues(v)

	return config
}

func LoadApplicationConfig(v *viper.Viper, cliOpts CliOnlyOptions) (*Application, error) {
	// the user may not have a config, and this is OK, we can use the default config + default cobra cli values instead
	config := newApplicationConfig(v, cliOpts)

	if err := readConfig(v, cliOpts.ConfigPath); err != nil && !errors.Is(err, ErrApplicationConfigNotFound) {
		return nil, err
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}
	config.ConfigPath = v.ConfigFileUsed()

	if err := config.parseConfigValues(); err != nil {
		return nil, fmt.Errorf("invalid application config: %w", err)
	}

	return config, nil
}

// loadDefaultValues loads the default configuration values into the viper instance (before the config values are read and parsed).
func (cfg Application) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("output", presenter.TextPresenter.String())
	v.SetDefault("java-home", "")
	v.SetDefault("target-version", "")

	// for each field in the configuration struct, see if the field implements the defaultValueLoader interface and invoke it if it does
	value := reflect.ValueOf(cfg)
	for i := 0; i < value.NumField(); i++ {
		// note: the defaultValueLoader method receiver is NOT a pointer receiver.
		if loadable, ok := value.Field(i).Interface().(defaultValueLoader); ok {
			loadable.loadDefaultValues(v)
		}
	}
}

func (cfg *Application) parseConfigValues() error {
	var errs error
	for _, optionFn := range []func() error{
		cfg.parseLogLevelOption,
		cfg.parseOutputOption,
	} {
		if err := optionFn(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	// parse nested config options
	// note: the app config is a pointer, so we need to grab the elements explicitly (to traverse the address)
	value := reflect.ValueOf(cfg).Elem()
	for i := 0; i < value.NumField(); i++ {
		// note: since the interface method of parser is a pointer receiver we need to get the value of the field as a pointer.
		if parsable, ok := value.Field(i).Addr().Interface().(parser); ok {
			if err := parsable.parseConfigValues(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	return errs
}

func (cfg *Application) parseLogLevelOption() error {
	switch {
	case cfg.Quiet:
		// quiet trumps all other logging options, including a log file on disk
		cfg.Log.LevelOpt = logrus.PanicLevel
	case cfg.CliOptions.Verbosity > 0:
		cfg.Log.LevelOpt = levelFromVerbosity(cfg.CliOptions.Verbosity)
	case cfg.Log.Level != "":
		lvl, err := logrus.ParseLevel(strings.ToLower(cfg.Log.Level))
		if err != nil {
			return fmt.Errorf("bad log level configured (%q): %w", cfg.Log.Level, err)
		}
		cfg.Log.LevelOpt = lvl
		if lvl >= logrus.InfoLevel {
			cfg.Verbosity = 1
		}
	default:
		cfg.Log.LevelOpt = logrus.WarnLevel
	}
	cfg.Log.Level = cfg.Log.LevelOpt.String()
	return nil
}

func levelFromVerbosity(verbosity int) logrus.Level {
	switch v := verbosity; {
	case v == 1:
		return logrus.InfoLevel
	case v == 2:
		return logrus.DebugLevel
	case v >= 3:
		return logrus.TraceLevel
	default:
		return logrus.WarnLevel
	}
}

func (cfg *Application) parseOutputOption() error {
	cfg.PresenterOpt = presenter.ParseOption(cfg.Output)
	if cfg.PresenterOpt == presenter.UnknownPresenter {
		return fmt.Errorf("bad --output value %q, options=%v", cfg.Output, presenter.Options)
	}
	return nil
}

func (cfg Application) String() string {
	// yaml is pretty human friendly (at least when compared to json)
	appCfgStr, err := yaml.Marshal(&cfg)

	if err != nil {
		return err.Error()
	}

	return string(appCfgStr)
}

// readConfig attempts to read the given config path from disk or discover an alternate store location
func readConfig(v *viper.Viper, configPath string) error {
	var err error
	v.AutomaticEnv()
	v.SetEnvPrefix(internal.ApplicationName)
	// allow for nested options to be specified via environment variables
	// e.g. log.level = FORBIDDENAPIS_LOG_LEVEL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// use explicitly the given user config
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read application config=%q : %w", configPath, err)
		}
		// don't fall through to other options if the config path was explicitly provided
		return nil
	}

	// start searching for valid configs in order...

	// 1. look for .<appname>.yaml (in the current directory)
	v.AddConfigPath(".")
	v.SetConfigName("." + internal.ApplicationName)
	if err = v.ReadInConfig(); err == nil {
		return nil
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
	}

	// 2. look for .<appname>/config.yaml (in the current directory)
	v.AddConfigPath("." + internal.ApplicationName)
	v.SetConfigName("config")
	if err = v.ReadInConfig(); err == nil {
		return nil
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
	}

	// 3. look for ~/.<appname>.yaml
	home, err := homedir.Dir()
	if err == nil {
		v.AddConfigPath(home)
		v.SetConfigName("." + internal.ApplicationName)
		if err = v.ReadInConfig(); err == nil {
			return nil
		} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
		}
	}

	// 4. look for <appname>/config.yaml in xdg locations (starting with xdg home config dir, then moving upwards)
	v.AddConfigPath(path.Join(xdg.ConfigHome, internal.ApplicationName))
	for _, dir := range xdg.ConfigDirs {
		v.AddConfigPath(path.Join(dir, internal.ApplicationName))
	}
	v.SetConfigName("config")
	if err = v.ReadInConfig(); err == nil {
		return nil
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
	}

	return ErrApplicationConfigNotFound
}
