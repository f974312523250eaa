package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blues/cfc/internal/creation"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/pinning"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	createTitle       string
	createDescription string
	createTarget      string
	createDeadline    string
	createImage       string
	createImageFile   string
)

// createCmd 创建活动
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "创建众筹活动",
	Long: `创建众筹活动。

--image 直接使用已上传资源的 URL；--image-file 先上传本地文件再使用返回的 URL。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deadline, err := parseDeadline(createDeadline)
		if err != nil {
			return err
		}
		if (createImage == "") == (createImageFile == "") {
			return fmt.Errorf("exactly one of --image and --image-file is required")
		}

		a, err := newApp(cfg, notify.Console{})
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		if err := a.connect(ctx); err != nil {
			return err
		}

		image := createImage
		if createImageFile != "" {
			image, err = uploadImage(ctx, a.pinner, createImageFile)
			if err != nil {
				return err
			}
		}

		a.creation.SetForm(creation.Form{
			Title:       createTitle,
			Description: createDescription,
			Target:      createTarget,
			Deadline:    deadline.Unix(),
			Image:       image,
		})
		receipt, err := a.creation.Submit(ctx)
		if err != nil {
			return err
		}
		pterm.Info.Printf("Transaction %s (block %d)\n", receipt.TxHash, receipt.BlockNumber)
		return nil
	},
}

func uploadImage(ctx context.Context, pinner *pinning.Client, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	spinner, _ := pterm.DefaultSpinner.WithText("Uploading " + filepath.Base(path) + "...").Start()
	res, err := pinner.PinFile(ctx, filepath.Base(path), f, pinning.Metadata{Name: createTitle, Description: createDescription})
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return "", err
	}
	pterm.Success.Printf("Uploaded image: %s\n", res.URL)
	return res.URL, nil
}

// parseDeadline 支持 RFC3339 和 2006-01-02（当天结束）
func parseDeadline(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t.Add(24*time.Hour - time.Second), nil
	}
	return time.Time{}, fmt.Errorf("invalid --deadline %q: use RFC3339 or YYYY-MM-DD", s)
}

func init() {
	createCmd.Flags().StringVar(&createTitle, "title", "", "campaign title")
	createCmd.Flags().StringVar(&createDescription, "description", "", "campaign description")
	createCmd.Flags().StringVar(&createTarget, "target", "", "target amount in display units")
	createCmd.Flags().StringVar(&createDeadline, "deadline", "", "deadline (RFC3339 or YYYY-MM-DD)")
	createCmd.Flags().StringVar(&createImage, "image", "", "image URL")
	createCmd.Flags().StringVar(&createImageFile, "image-file", "", "local image to upload")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("target")
	_ = createCmd.MarkFlagRequired("deadline")
}
