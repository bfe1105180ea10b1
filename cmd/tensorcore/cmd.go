package main

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/backend/cpu"
	"github.com/born-ml/tensorcore/backend/webgpu"
	"github.com/born-ml/tensorcore/internal/envconfig"
	"github.com/born-ml/tensorcore/tensor"
)

const version = "v0.1.0-dev"

// appendEnvDocs lists the environment settings a command reads in its usage.
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}
	envUsage := "\nEnvironment Variables:\n"
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-30s   %s\n", e.Name, e.Description)
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	var useWebGPU bool
	rootCmd := &cobra.Command{
		Use:           "tensorcore",
		Short:         "Inspect, convert and create saved tensors",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !useWebGPU {
				return nil
			}
			return errors.WithMessage(webgpu.Enable(), "--webgpu")
		},
	}

	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(goFlags)
	rootCmd.PersistentFlags().BoolVar(&useWebGPU, "webgpu", false, "Use the WebGPU accelerator")

	envVars := envconfig.AsMap()
	devicesCmd := newDevicesCmd()
	envs := make([]envconfig.EnvVar, 0, len(envVars))
	for _, e := range envVars {
		envs = append(envs, e)
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Name < envs[j].Name })
	appendEnvDocs(devicesCmd, envs)

	rootCmd.AddCommand(
		newVersionCmd(),
		devicesCmd,
		newInspectCmd(),
		newConvertCmd(),
		newCreateCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tensorcore version is %s\n", version)
		},
	}
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List usable devices and host memory settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			table := newTable(out, "DEVICE", "TYPE")
			for _, dev := range tensor.Devices() {
				table.Append([]string{dev.String(), dev.Type.String()})
			}
			table.Render()

			fmt.Fprintf(out, "\nhost memory in use: %s (%d mapped buffers)\n",
				humanize.IBytes(uint64(cpu.LiveBytes())), cpu.MappedBuffers())
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	var values int
	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Show the kind, shape and size of saved tensors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := newTable(cmd.OutOrStdout(), "FILE", "KIND", "SHAPE", "ELEMENTS", "SIZE")
			var summaries []string
			for _, path := range args {
				t, err := tensor.LoadFile(path)
				if err != nil {
					return err
				}
				table.Append([]string{
					path,
					t.DType().String(),
					formatShape(t.Shape()),
					humanize.Comma(int64(t.NumElements())),
					humanize.IBytes(uint64(t.NumElements() * t.DType().Size())),
				})
				if values > 0 {
					s, err := t.Summary(values)
					if err != nil {
						t.Dispose()
						return err
					}
					summaries = append(summaries, path+": "+s)
				}
				t.Dispose()
			}
			table.Render()
			for _, s := range summaries {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&values, "values", "n", 0, "Also print up to `N` elements of each tensor")
	return cmd
}

func newConvertCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert a saved tensor to another kind",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := tensor.ParseDataType(kind)
			if err != nil {
				return err
			}
			s := tensor.NewScope()
			defer s.Close()
			in, err := s.Track(tensor.LoadFile(args[0]))
			if err != nil {
				return err
			}
			out, err := s.Track(in.ToType(dt))
			if err != nil {
				return err
			}
			if err := tensor.SaveFile(args[1], out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "converted %s %s to %s\n", in.DType(), formatShape(in.Shape()), dt)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Target data type, e.g. float32, bf16, int64")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newCreateCmd() *cobra.Command {
	var (
		shape []int
		kind  string
		mode  string
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "create OUT",
		Short: "Create and save a new tensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := tensor.ParseDataType(kind)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				tensor.ManualSeed(seed)
			}
			t, err := create(mode, tensor.Shape(shape), dt)
			if err != nil {
				return err
			}
			defer t.Dispose()
			if err := tensor.SaveFile(args[0], t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", t)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntSliceVarP(&shape, "shape", "s", nil, "Comma separated dimensions, e.g. 2,3")
	flags.StringVarP(&kind, "kind", "k", "float32", "Data type")
	flags.StringVar(&mode, "init", "zeros", "One of zeros, ones, arange, eye, rand, randn")
	flags.Uint64Var(&seed, "seed", 0, "Seed for rand and randn")
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	return cmd
}

func create(mode string, shape tensor.Shape, dt tensor.DataType) (*tensor.Tensor, error) {
	switch mode {
	case "zeros":
		return tensor.Zeros(shape, dt)
	case "ones":
		return tensor.Ones(shape, dt)
	case "rand":
		return tensor.Rand(shape, dt)
	case "randn":
		return tensor.Randn(shape, dt)
	case "arange":
		seq, err := tensor.Arange(0, float64(shape.NumElements()), 1, dt)
		if err != nil {
			return nil, err
		}
		defer seq.Dispose()
		return seq.Reshape(shape...)
	case "eye":
		if len(shape) != 2 || shape[0] != shape[1] {
			return nil, errors.Wrapf(tensor.ErrShapeMismatch, "eye needs a square shape, got %v", shape)
		}
		return tensor.Eye(shape[0], dt)
	}
	return nil, errors.Errorf("unknown --init %q", mode)
}

func formatShape(shape tensor.Shape) string {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(dims, ", ") + "]"
}
