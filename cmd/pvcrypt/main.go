package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/k8sops/pvcrypt/internal/models"
	"github.com/k8sops/pvcrypt/internal/version"
	"github.com/k8sops/pvcrypt/pkg/aws"
	"github.com/k8sops/pvcrypt/pkg/formatter"
	"github.com/k8sops/pvcrypt/pkg/inventory"
	"github.com/k8sops/pvcrypt/pkg/kube"
	"github.com/k8sops/pvcrypt/pkg/migrate"
	"github.com/k8sops/pvcrypt/pkg/pricing"
	"github.com/k8sops/pvcrypt/pkg/utils"
)

var (
	region     string
	kubeconfig string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pvcrypt",
		Short: "CLI tool to find and encrypt EBS-backed persistent volumes",
		Long: `pvcrypt scans a Kubernetes cluster for PersistentVolumes backed by
unencrypted EBS volumes and drives the snapshot / encrypted-copy /
recreate sequence that replaces each one with an encrypted copy.`,
		SilenceUsage: true,
		Version:      version.Get().Version,
	}

	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", "",
		fmt.Sprintf("AWS region of the cluster's volumes (default: $AWS_REGION or %s)", utils.GetDefaultRegion()))
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "",
		"Path to the kubeconfig file (default: in-cluster config, then $KUBECONFIG)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report the encryption status of every EBS-backed persistent volume",
		Long: `status lists all PersistentVolumes, resolves each to its backing EBS
volume, and prints which are encrypted, which are not, and which could
not be resolved. Read-only: it performs no mutating API call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Interactively replace unencrypted volumes with encrypted copies",
		Long: `encrypt scans like status, then walks the unencrypted volumes through
snapshot, encrypted snapshot copy, volume creation, and PV/PVC rebind.
Each workload is scaled down for the swap and restored afterwards.
Every mutating step asks for confirmation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncrypt(cmd.Context())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Printf("pvcrypt %s (built: %s, commit: %s, %s)\n",
				info.Version, info.BuildDate, info.GitCommit, info.GoVersion)
		},
	}

	rootCmd.AddCommand(statusCmd, encryptCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveRegion picks the region flag, then $AWS_REGION, then the default
func resolveRegion() string {
	if region != "" {
		return region
	}
	if env := os.Getenv("AWS_REGION"); env != "" {
		return env
	}
	return utils.GetDefaultRegion()
}

// collect runs one inventory pass behind a spinner
func collect(ctx context.Context, kubeClient inventory.PVLister, ebsClient inventory.VolumeDescriber) (result *collectResult, err error) {
	fmt.Println("Starting persistent volume scan ...")
	scanStartTime := time.Now()

	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond)
	s.Suffix = " Analyzing persistent volumes ..."
	s.Start()

	collector := inventory.NewCollector(kubeClient, ebsClient)
	classification, err := collector.Collect(ctx)

	scanDuration := time.Since(scanStartTime)
	if err != nil {
		s.Stop()
		return nil, err
	}

	s.FinalMSG = fmt.Sprintf("✓ [%d volumes scanned] Persistent volumes analyzed - Completed in %.2f seconds\n",
		classification.Total(), scanDuration.Seconds())
	s.Stop()

	if msg := pricing.GetInitMessage(); msg != "" {
		fmt.Println(msg)
	}

	return &collectResult{
		classification: classification,
		startTime:      scanStartTime,
		duration:       scanDuration,
	}, nil
}

type collectResult struct {
	classification *models.ClassificationResult
	startTime      time.Time
	duration       time.Duration
}

func runStatus(ctx context.Context) error {
	reg := resolveRegion()
	if !utils.IsValidRegion(reg) {
		fmt.Printf("Warning: unrecognized region '%s'\n", reg)
	}

	kubeClient, err := kube.NewClient(kubeconfig)
	if err != nil {
		return err
	}

	ebsClient, err := aws.NewEBSClient(ctx, reg)
	if err != nil {
		return err
	}

	res, err := collect(ctx, kubeClient, ebsClient)
	if err != nil {
		return err
	}

	formatter.PrintClassification(os.Stdout, res.classification, reg, res.startTime, res.duration)
	formatter.PrintPricingAPIStats(os.Stdout)

	return nil
}

func runEncrypt(ctx context.Context) error {
	reg := resolveRegion()
	if !utils.IsValidRegion(reg) {
		fmt.Printf("Warning: unrecognized region '%s'\n", reg)
	}

	kubeAdmin, err := kube.NewAdminClient(kubeconfig)
	if err != nil {
		return err
	}

	ebsAdmin, err := aws.NewEBSAdminClient(ctx, reg)
	if err != nil {
		return err
	}

	res, err := collect(ctx, kubeAdmin, ebsAdmin)
	if err != nil {
		return err
	}
	classification := res.classification

	fmt.Printf("\n## Unencrypted EBS volumes (%s)\n", reg)
	formatter.PrintUnencryptedTable(os.Stdout, classification.Unencrypted)
	if len(classification.Unencrypted) == 0 {
		return nil
	}

	planner := migrate.NewPlanner(kubeAdmin)
	plan, err := planner.Plan(ctx, classification.Unencrypted)
	if err != nil {
		return err
	}
	formatter.PrintMigrationPlan(os.Stdout, plan)

	confirmer := &migrate.TerminalConfirmer{In: os.Stdin, Out: os.Stdout}
	if !confirmer.Confirm(fmt.Sprintf("\nProceed with encrypting %d volumes in %s",
		len(classification.Unencrypted), reg)) {
		fmt.Println("Aborted.")
		return nil
	}

	runner := migrate.NewRunner(ebsAdmin, kubeAdmin, confirmer, os.Stdout)
	swaps, runErr := runner.Run(ctx, plan, classification.Unencrypted)

	formatter.PrintSwapsTable(os.Stdout, swaps)

	if runErr != nil {
		if errors.Is(runErr, migrate.ErrAborted) {
			fmt.Printf("Aborted: %v\n", runErr)
			return nil
		}
		return runErr
	}

	return nil
}
