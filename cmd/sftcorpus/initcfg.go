package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "sftcorpus/internal/config"
)

// defaultConfigName: init-config 生成与 build 默认查找的文件名。
const defaultConfigName = "sftcorpus.yaml"

func newInitCmd(stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [DIR]",
		Short: "Write a default sftcorpus.yaml and .env template (never overwrites)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && args[0] != "" {
				dir = args[0]
			}
			return runInit(dir, stderr)
		},
	}
}

func runInit(dir string, stderr io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(stderr, exitConfig, "生成默认配置失败", err)
	}
	if err := writeConfig(filepath.Join(dir, defaultConfigName), cfgpkg.DefaultTemplateConfig()); err != nil {
		return fail(stderr, exitConfig, "生成默认配置失败", err)
	}
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

// writeConfig 以 YAML 写出配置；path 为 "-" 时写 stdout；不覆盖已存在文件。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := cfgpkg.MarshalYAML(c)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = io.WriteString(f, cfgpkg.EnvTemplate())
	return err
}
