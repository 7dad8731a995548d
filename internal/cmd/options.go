package cmd

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"wpmu/internal/report"
)

// reportOptions is the resolved configuration of one report run, merged from
// flags, WPMU_* environment variables and the config file.
type reportOptions struct {
	Themes     bool   `flag:"themes"`
	Plugins    bool   `flag:"plugins"`
	All        bool   `flag:"all"`
	Format     string `flag:"format" validate:"oneof=table csv json count yaml"`
	SiteStatus bool   `flag:"site-status"`
	Output     string `flag:"output"`

	Source       string `flag:"source" validate:"oneof=wpcli database snapshot"`
	Snapshot     string `flag:"snapshot" validate:"required_if=Source snapshot"`
	SaveSnapshot string `flag:"save-snapshot"`

	Host       string        `flag:"host"`
	SSHUser    string        `flag:"user"`
	SSHPort    string        `flag:"port" validate:"omitempty,numeric"`
	SSHKey     string        `flag:"key"`
	SSHAgent   bool          `flag:"agent"`
	Timeout    time.Duration `flag:"timeout" validate:"gte=0"`
	KnownHosts string        `flag:"known-hosts"`
	Container  string        `flag:"container"`
	DockerUser string        `flag:"docker-user"`
	WPPath     string        `flag:"path"`
	AllowRoot  bool          `flag:"allow-root"`

	DBDSN       string `flag:"db-dsn"`
	DBHost      string `flag:"db-host"`
	DBUser      string `flag:"db-user"`
	DBPassword  string `flag:"db-password"`
	DBName      string `flag:"db-name"`
	TablePrefix string `flag:"table-prefix"`
	NetworkID   int64  `flag:"network-id" validate:"gte=1"`
	WPContent   string `flag:"wp-content" validate:"required_if=Source database"`

	Upload         bool   `flag:"upload"`
	MinioEndpoint  string `flag:"minio-endpoint" validate:"required_if=Upload true"`
	MinioAccessKey string `flag:"minio-access-key"`
	MinioSecretKey string `flag:"minio-secret-key"`
	MinioBucket    string `flag:"minio-bucket" validate:"required_if=Upload true"`
	MinioPrefix    string `flag:"minio-prefix"`
	MinioSSL       bool   `flag:"minio-ssl"`

	SheetID          string `flag:"sheet-id"`
	SheetCredentials string `flag:"sheet-credentials" validate:"required_with=SheetID"`
}

// kinds lists the requested reports in output order.
func (o *reportOptions) kinds() []report.Kind {
	var kinds []report.Kind
	for _, k := range report.Kinds {
		switch {
		case k == report.KindThemes && o.Themes,
			k == report.KindPlugins && o.Plugins,
			k == report.KindAll && o.All:
			kinds = append(kinds, k)
		}
	}
	return kinds
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("flag"); name != "" {
			return "--" + name
		}
		return f.Name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		o := sl.Current().Interface().(reportOptions)
		if o.Source == "database" && o.DBDSN == "" && o.DBHost == "" {
			sl.ReportError(o.DBHost, "--db-host", "DBHost", "db_target", "")
		}
	}, reportOptions{})
	return v
}

// loadReportOptions reads every report setting through viper and validates it.
func loadReportOptions() (*reportOptions, error) {
	opts := &reportOptions{
		Themes:     viper.GetBool("themes"),
		Plugins:    viper.GetBool("plugins"),
		All:        viper.GetBool("all"),
		Format:     strings.ToLower(viper.GetString("format")),
		SiteStatus: viper.GetBool("site-status"),
		Output:     viper.GetString("output"),

		Source:       strings.ToLower(viper.GetString("source")),
		Snapshot:     viper.GetString("snapshot"),
		SaveSnapshot: viper.GetString("save-snapshot"),

		Host:       viper.GetString("host"),
		SSHUser:    viper.GetString("user"),
		SSHPort:    viper.GetString("port"),
		SSHKey:     viper.GetString("key"),
		SSHAgent:   viper.GetBool("agent"),
		Timeout:    viper.GetDuration("timeout"),
		KnownHosts: viper.GetString("known-hosts"),
		Container:  viper.GetString("container"),
		DockerUser: viper.GetString("docker-user"),
		WPPath:     viper.GetString("path"),
		AllowRoot:  viper.GetBool("allow-root"),

		DBDSN:       viper.GetString("db-dsn"),
		DBHost:      viper.GetString("db-host"),
		DBUser:      viper.GetString("db-user"),
		DBPassword:  viper.GetString("db-password"),
		DBName:      viper.GetString("db-name"),
		TablePrefix: viper.GetString("table-prefix"),
		NetworkID:   viper.GetInt64("network-id"),
		WPContent:   viper.GetString("wp-content"),

		Upload:         viper.GetBool("upload"),
		MinioEndpoint:  viper.GetString("minio-endpoint"),
		MinioAccessKey: viper.GetString("minio-access-key"),
		MinioSecretKey: viper.GetString("minio-secret-key"),
		MinioBucket:    viper.GetString("minio-bucket"),
		MinioPrefix:    viper.GetString("minio-prefix"),
		MinioSSL:       viper.GetBool("minio-ssl"),

		SheetID:          viper.GetString("sheet-id"),
		SheetCredentials: viper.GetString("sheet-credentials"),
	}
	if err := validate.Struct(opts); err != nil {
		return nil, formatValidationErrors(err)
	}
	return opts, nil
}

// formatValidationErrors converts validator errors into user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, formatFieldError(fe))
	}
	return fmt.Errorf("invalid options: %s", strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, conditionText(fe.Param()))
	case "required_with":
		return fmt.Sprintf("%s is required with %s", field, conditionText(fe.Param()))
	case "numeric":
		return fmt.Sprintf("%s must be a number", field)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "db_target":
		return "--db-dsn or --db-host is required when --source=database"
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// conditionText turns a validator condition such as "Source database" into
// the flag spelling the user typed.
func conditionText(param string) string {
	switch param {
	case "Source database":
		return "--source=database"
	case "Source snapshot":
		return "--source=snapshot"
	case "Upload true":
		return "--upload is set"
	case "SheetID":
		return "--sheet-id"
	default:
		return param
	}
}
