package services

import (
	goerrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/config"
	"github.com/conneroisu/tplc/internal/errors"
)

// ConfigFile is the configuration file name looked up in the working directory.
const ConfigFile = ".tplc.yml"

// InitService scaffolds a new project.
type InitService struct{}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string
	// Force overwrites files that already exist.
	Force bool
}

// InitResult lists what the scaffold wrote and what it left alone.
type InitResult struct {
	Created []string
	Skipped []string
}

var scaffoldFiles = map[string]string{
	"templates/header.tpl": `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>tplc</title>
  <script src="{{js}}"></script>
</head>
<body>
`,
	"templates/footer.tpl": `</body>
</html>
`,
	"templates/index.tpl": `{{block=header}}
<main>
{{if $name}}
  <h1>Hello, {{text $name}}!</h1>
{{else}}
  <h1>{{text Hello from tplc}}</h1>
{{end if}}
  <ol>
{{range 1,3}}
    <li>{{text $i}}</li>
{{end range}}
  </ol>
</main>
{{block=footer}}
`,
	"templates/404.tpl": `{{block=header}}
<main>
  <h1>Not found</h1>
  <p>There is no page named {{text $lostPage}}.</p>
</main>
{{block=footer}}
`,
	"templates/src/javascript/custom/app.js": `console.log("tplc ready");
`,
}

// InitProject writes the starter templates, script and configuration file.
func (s *InitService) InitProject(opts InitOptions) (*InitResult, error) {
	dir := opts.ProjectDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeSourceIO, "creating project directory")
	}

	files := make(map[string][]byte, len(scaffoldFiles)+1)
	for name, content := range scaffoldFiles {
		files[name] = []byte(content)
	}
	cfgData, err := defaultConfigYAML()
	if err != nil {
		return nil, err
	}
	files[ConfigFile] = cfgData

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &InitResult{}
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if !opts.Force {
			if _, err := os.Stat(path); err == nil {
				result.Skipped = append(result.Skipped, name)
				continue
			} else if !goerrors.Is(err, fs.ErrNotExist) {
				return result, errors.WrapIO(err, errors.ErrCodeSourceIO, "checking "+name)
			}
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return result, errors.WrapIO(err, errors.ErrCodeSourceIO, "creating directory for "+name)
		}
		if err := cache.WriteAtomic(path, files[name]); err != nil {
			return result, errors.WrapIO(err, errors.ErrCodeSourceIO, "writing "+name)
		}
		result.Created = append(result.Created, name)
	}

	return result, nil
}

type scaffoldConfig struct {
	Environment string            `yaml:"environment"`
	Templates   scaffoldTemplates `yaml:"templates"`
	Cache       scaffoldCache     `yaml:"cache"`
	Compiler    scaffoldCompiler  `yaml:"compiler"`
	Assets      scaffoldAssets    `yaml:"assets"`
	Server      scaffoldServer    `yaml:"server"`
}

type scaffoldTemplates struct {
	Dir         string `yaml:"dir"`
	FragmentExt string `yaml:"fragment_ext"`
}

type scaffoldCompiler struct {
	Minify     bool `yaml:"minify"`
	HTMLEscape bool `yaml:"html_escape"`
}

type scaffoldCache struct {
	Dir string `yaml:"dir"`
	TTL string `yaml:"ttl"`
}

type scaffoldAssets struct {
	Builtin []string `yaml:"builtin"`
	Custom  []string `yaml:"custom"`
}

type scaffoldServer struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func defaultConfigYAML() ([]byte, error) {
	cfg := scaffoldConfig{
		Environment: config.EnvironmentDebug,
		Templates:   scaffoldTemplates{Dir: "templates", FragmentExt: ".tpl"},
		Cache:       scaffoldCache{Dir: "cache", TTL: "1h"},
		Compiler:    scaffoldCompiler{Minify: true},
		Assets:      scaffoldAssets{Builtin: []string{}, Custom: []string{"app.js"}},
		Server:      scaffoldServer{Host: "localhost", Port: 8080},
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.WrapConfig(err, "encoding default configuration")
	}
	return data, nil
}
