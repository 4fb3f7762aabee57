package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/anchore/forbiddenapis/forbiddenapis"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/models"
	"github.com/anchore/forbiddenapis/internal"
	"github.com/anchore/forbiddenapis/internal/log"
	"github.com/anchore/forbiddenapis/internal/ui"
	"github.com/anchore/forbiddenapis/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   fmt.Sprintf("%s [DIR]", internal.ApplicationName),
	Short: "Check compiled Java classes for invocations of forbidden APIs",
	Long: fmt.Sprintf(`Scans class files for references to forbidden classes, methods and fields:
    %[1]s build/classes -b jdk-unsafe -b jdk-deprecated --target-version 17
    %[1]s build/classes -f config/forbidden-apis.txt --classpath lib/dep.jar
    %[1]s --signatures 'java.lang.System#exit(int) @ use a return code' build/classes
`, internal.ApplicationName),
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.Dev.ProfileCPU {
			defer profile.Start(profile.CPUProfile).Stop()
		} else if appConfig.Dev.ProfileMem {
			defer profile.Start(profile.MemProfile).Stop()
		}

		return runCheck(cmd, args)
	},
}

func init() {
	setRootFlags(rootCmd.Flags())
	setPersistentFlags(rootCmd.PersistentFlags())
}

func setPersistentFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&persistentOpts.ConfigPath, "config", "c", "", "application config file")
	flags.CountVarP(&persistentOpts.Verbosity, "verbose", "v", "increase verbosity (-v = info, -vv = debug, -vvv = trace)")
	flags.BoolP("quiet", "q", false, "suppress all logging output")
}

func setRootFlags(flags *pflag.FlagSet) {
	defaults := forbiddenapis.DefaultFailurePolicy()

	flags.StringP(
		"output", "o", presenter.TextPresenter.String(),
		fmt.Sprintf("report output format, options=%v", presenter.Options),
	)

	flags.StringSlice("classpath", nil, "directories and jar files used to resolve referenced classes")
	flags.String("java-home", "", "Java runtime providing the platform classes (default $JAVA_HOME)")
	flags.StringSlice("class-file", nil, "an individual class file to check (may be repeated)")

	flags.String("signatures", "", "inline signatures, one per line")
	flags.StringSliceP("signatures-file", "f", nil, "a file containing signatures (may be repeated)")
	flags.StringSliceP("bundled", "b", nil, "name of a bundled signature set, e.g. jdk-unsafe (may be repeated)")
	flags.StringSlice("suppress-annotation", nil, "annotation class name exempting a class from reporting (may be repeated)")
	flags.String("target-version", "", "Java version used to pick the matching JDK bundled signatures")

	flags.Bool("fail-on-unsupported-java", defaults.FailOnUnsupportedJava, "fail when the Java runtime cannot be inspected, instead of skipping")
	flags.Bool("fail-on-missing-classes", defaults.FailOnMissingClasses, "fail when a referenced class cannot be found")
	flags.Bool("fail-on-unresolvable-signatures", defaults.FailOnUnresolvableSignatures, "fail when a signature names an unknown class or member")
	flags.Bool("fail-on-violation", defaults.FailOnViolation, "fail when a forbidden API is used")
	flags.Bool("ignore-empty-file-set", defaults.IgnoreEmptyFileSet, "skip instead of failing when there are no class files")
	flags.Bool("restrict-class-filename", defaults.RestrictClassFilename, "only check files ending in .class")
	flags.Bool("disable-classloading-cache", defaults.DisableClassloadingCache, "do not cache referenced classes")
	flags.Bool("internal-runtime-forbidden", false, "forbid non-portable runtime classes")
	_ = flags.MarkDeprecated("internal-runtime-forbidden", "use --bundled jdk-non-portable instead")
}

// flagKeys maps flag names to their configuration keys where the two differ.
var flagKeys = map[string]string{
	"class-file":          "class-files",
	"signatures-file":     "signatures-files",
	"suppress-annotation": "suppress-annotations",
}

func bindRootConfigOptions(flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := f.Name
		if k, ok := flagKeys[f.Name]; ok {
			key = k
		}
		if bindErr := viper.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("unable to bind flag %q: %w", f.Name, bindErr)
		}
	})
	if err != nil {
		return err
	}
	return viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func runCheck(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		appConfig.Dir = args[0]
	}

	var checkErr error
	err := eventLoop(
		startWorker(func() error {
			_, checkErr = forbiddenapis.Check(appConfig.CheckConfig(afero.NewOsFs()))
			return nil
		}),
		setupSignals(),
		eventSubscription,
		func() {},
		newReporter(),
	)
	if err != nil {
		return err
	}
	if checkErr != nil {
		log.Debugf("check failed: %+v", checkErr)
	}
	return checkErr
}

// startWorker runs fn in the background. Errors from fn abort the event loop; a check outcome is reported through
// the bus instead, so the report is shown before the command fails.
func startWorker(fn func() error) <-chan error {
	errs := make(chan error)
	go func() {
		defer close(errs)
		if err := fn(); err != nil {
			errs <- err
		}
	}()
	return errs
}

func newReporter() ui.UI {
	return ui.NewLoggerUI(os.Stdout, ui.ReportConfig{
		Option:    appConfig.PresenterOpt,
		WithColor: appConfig.PresenterOpt == presenter.TextPresenter && term.IsTerminal(int(os.Stdout.Fd())),
		Descriptor: models.Descriptor{
			Name:    internal.ApplicationName,
			Version: version.FromBuild().Version,
		},
	})
}
