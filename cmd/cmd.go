package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pixfeed/pixfeed/api"
	"github.com/pixfeed/pixfeed/batch"
	"github.com/pixfeed/pixfeed/envconfig"
	"github.com/pixfeed/pixfeed/format"
	"github.com/pixfeed/pixfeed/logutil"
	"github.com/pixfeed/pixfeed/version"
)

func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "pixfeed",
		Short:         "Batched image decode and augmentation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := envconfig.LogLevel()
			if v, _ := cmd.Flags().GetCount("verbose"); v > 0 {
				level = slog.LevelDebug
			}
			slog.SetDefault(logutil.NewLogger(os.Stderr, level))
		},
	}

	rootCmd.PersistentFlags().CountP("verbose", "v", "Show additional debug output")

	rootCmd.AddCommand(
		NewFetchCmd(),
		NewServeCmd(),
	)

	return rootCmd
}

func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch FILE...",
		Short: "Decode a batch of images",
		Args:  cobra.MinimumNArgs(1),
		RunE:  fetchHandler,
	}

	f := cmd.Flags()
	f.Int("threads", envconfig.NumThreads, "Decode worker count")
	f.Bool("prefetch", false, "Kick off background work and return")
	f.IntSlice("resize", nil, "Resize: S (shortest side) or H,W (fixed)")
	f.Bool("pack", false, "Emit a single packed tensor")
	f.Bool("gpu", false, "Upload outputs to device memory")
	f.String("precision", api.PrecisionFloat32, "Device transfer precision (float32, float16, bfloat16)")
	f.Float32Slice("subtract-average", nil, "Per-channel mean to subtract (r,g,b)")
	f.Float32Slice("brightness", nil, "Brightness deviation: scalar, 3-vector or 3x3 matrix")
	f.Float32("contrast", 0, "Contrast deviation in [0,1]")
	f.Float32("saturation", 0, "Saturation deviation in [0,1]")
	f.Float32Slice("crop-anisotropy", nil, "Aspect sampling range min,max")
	f.Float32Slice("crop-size", []float32{1, 1}, "Relative crop size range min,max")
	f.String("crop-location", api.CropCenter, "Crop placement: center or random")
	f.Bool("flip", false, "Enable 50/50 horizontal flip")
	f.Int64("seed", 0, "Augmentation RNG seed (0 seeds from the clock)")
	f.String("out", "", "Write the fetched batch to a CBOR file")

	return cmd
}

func optionsFromFlags(cmd *cobra.Command) (api.Options, error) {
	opts := api.DefaultOptions()
	f := cmd.Flags()

	opts.NumThreads, _ = f.GetInt("threads")
	opts.Prefetch, _ = f.GetBool("prefetch")
	opts.Resize, _ = f.GetIntSlice("resize")
	opts.Pack, _ = f.GetBool("pack")
	opts.GPU, _ = f.GetBool("gpu")
	opts.Precision, _ = f.GetString("precision")
	opts.Brightness, _ = f.GetFloat32Slice("brightness")
	opts.Contrast, _ = f.GetFloat32("contrast")
	opts.Saturation, _ = f.GetFloat32("saturation")
	opts.CropLocation, _ = f.GetString("crop-location")
	opts.Flip, _ = f.GetBool("flip")
	opts.Seed, _ = f.GetInt64("seed")

	if avg, _ := f.GetFloat32Slice("subtract-average"); len(avg) > 0 {
		if len(avg) != 3 {
			return opts, fmt.Errorf("%w: subtract-average takes 3 values", api.ErrInvalidOption)
		}
		copy(opts.SubtractAverage[:], avg)
	}

	for flag, dst := range map[string]*[2]float32{
		"crop-anisotropy": &opts.CropAnisotropy,
		"crop-size":       &opts.CropSize,
	} {
		if v, _ := f.GetFloat32Slice(flag); len(v) > 0 {
			if len(v) != 2 {
				return opts, fmt.Errorf("%w: %s takes min,max", api.ErrInvalidOption, flag)
			}
			copy(dst[:], v)
		}
	}

	return opts, opts.Validate()
}

func fetchHandler(cmd *cobra.Command, args []string) error {
	opts, err := optionsFromFlags(cmd)
	if err != nil {
		return err
	}

	d := batch.NewDispatcher()
	defer d.Close()

	resp, err := d.FetchWithOptions(cmd.Context(), args, opts)
	if err != nil {
		return err
	}

	for _, w := range resp.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	if v, _ := cmd.Flags().GetCount("verbose"); v > 0 {
		printSummary(args, resp)
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := writeCBOR(out, resp); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "wrote", out)
	}

	return nil
}

func printSummary(names []string, resp *api.FetchResponse) {
	var data [][]string
	for i, t := range resp.Tensors {
		name := "(pack)"
		if len(resp.Tensors) == len(names) {
			name = names[i]
		}

		status := "ok"
		if t.Error != "" {
			status = t.Error
		}

		data = append(data, []string{name, format.Shape(t.Shape), t.Dtype, format.HumanBytes(int64(len(t.Data))), status})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NAME", "SHAPE", "DTYPE", "SIZE", "STATUS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func writeCBOR(path string, resp *api.FetchResponse) error {
	payload, err := cbor.Marshal(resp)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}
