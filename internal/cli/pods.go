package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	volt "github.com/voltagegpu/volt-go"
)

// stopConcurrency bounds parallel stop calls for "pods stop --all".
const stopConcurrency = 4

type waitFlags struct {
	wait         bool
	timeout      time.Duration
	pollInterval time.Duration
}

func (w *waitFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&w.wait, "wait", false, "wait until the pod reaches the target state")
	cmd.Flags().DurationVar(&w.timeout, "wait-timeout", volt.DefaultWaitTimeout, "maximum time to wait")
	cmd.Flags().DurationVar(&w.pollInterval, "poll-interval", volt.DefaultPollInterval, "delay between status checks")
}

func (w *waitFlags) options() volt.WaitOptions {
	return volt.WaitOptions{PollInterval: w.pollInterval, Timeout: w.timeout}
}

func newPodsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pods",
		Aliases: []string{"pod", "ps"},
		Short:   "Manage GPU pods",
	}
	cmd.AddCommand(
		newPodsListCommand(app),
		newPodsGetCommand(app),
		newPodsCreateCommand(app),
		newPodsStartCommand(app),
		newPodsStopCommand(app),
		newPodsDeleteCommand(app),
		newPodsSSHCommand(app),
		newPodsLogsCommand(app),
	)
	return cmd
}

func newPodsListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pods",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			pods, err := client.ListPods(cmd.Context())
			if err != nil {
				return err
			}
			return app.printer.Pods(pods)
		},
	}
}

func newPodsGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <pod>",
		Short: "Show a pod by id, HUID or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			pod, err := resolvePod(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			return app.printer.Pod(pod)
		},
	}
}

func newPodsCreateCommand(app *App) *cobra.Command {
	var (
		template    string
		name        string
		gpus        int
		sshKeys     []string
		envs        []string
		dockerCreds string
		wait        waitFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pod from a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := parseEnv(envs)
			if err != nil {
				return err
			}
			req := &volt.CreatePodRequest{
				TemplateID: template,
				Name:       name,
				SSHKeyIDs:  sshKeys,
				EnvVars:    env,
			}
			if cmd.Flags().Changed("gpus") {
				req.GPUCount = &gpus
			}
			if dockerCreds != "" {
				req.DockerCredentialsID = &dockerCreds
			}
			if err := req.Validate(); err != nil {
				return err
			}

			client, err := app.Client()
			if err != nil {
				return err
			}
			var pod *volt.Pod
			if wait.wait {
				app.printer.Messagef("Creating pod %q and waiting for it to run...", name)
				pod, err = client.CreatePodAndWait(cmd.Context(), req, wait.options())
				if err != nil && pod != nil {
					app.printer.Messagef("Pod %s is %s; it was not deleted.", pod.ID, pod.Status)
				}
			} else {
				pod, err = client.CreatePod(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return app.printer.Pod(pod)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&template, "template", "t", "", "template id (required)")
	f.StringVarP(&name, "name", "n", "", "pod name (required)")
	f.IntVarP(&gpus, "gpus", "g", 1, "number of GPUs")
	f.StringArrayVarP(&sshKeys, "ssh-key", "k", nil, "SSH key id to install (repeatable)")
	f.StringArrayVarP(&envs, "env", "e", nil, "environment variable KEY=VALUE (repeatable)")
	f.StringVar(&dockerCreds, "docker-credentials", "", "registry credentials id")
	wait.register(cmd)
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newPodsStartCommand(app *App) *cobra.Command {
	var wait waitFlags
	cmd := &cobra.Command{
		Use:   "start <pod>",
		Short: "Start a stopped pod",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			target, err := resolvePod(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			var pod *volt.Pod
			if wait.wait {
				pod, err = client.StartPodAndWait(cmd.Context(), target.ID, wait.options())
			} else {
				pod, err = client.StartPod(cmd.Context(), target.ID)
			}
			if err != nil {
				return err
			}
			return app.printer.Pod(pod)
		},
	}
	wait.register(cmd)
	return cmd
}

func newPodsStopCommand(app *App) *cobra.Command {
	var (
		all  bool
		wait waitFlags
	)
	cmd := &cobra.Command{
		Use:   "stop [pod]",
		Short: "Stop a running pod, or every running pod with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return usageError("pod", "pass either a pod or --all")
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			stop := func(ctx context.Context, id string) (*volt.Pod, error) {
				if wait.wait {
					return client.StopPodAndWait(ctx, id, wait.options())
				}
				return client.StopPod(ctx, id)
			}

			if !all {
				target, err := resolvePod(ctx, client, args[0])
				if err != nil {
					return err
				}
				pod, err := stop(ctx, target.ID)
				if err != nil {
					return err
				}
				return app.printer.Pod(pod)
			}

			pods, err := client.ListPods(ctx)
			if err != nil {
				return err
			}
			var running []volt.Pod
			for _, p := range pods {
				if p.Status == volt.PodRunning {
					running = append(running, p)
				}
			}
			stopped := make([]volt.Pod, len(running))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(stopConcurrency)
			for i, p := range running {
				g.Go(func() error {
					pod, err := stop(gctx, p.ID)
					if err != nil {
						return fmt.Errorf("stop %s: %w", p.ID, err)
					}
					stopped[i] = *pod
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return app.printer.Pods(stopped)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "stop every running pod")
	wait.register(cmd)
	return cmd
}

func newPodsDeleteCommand(app *App) *cobra.Command {
	var (
		yes  bool
		wait waitFlags
	)
	cmd := &cobra.Command{
		Use:     "delete <pod>",
		Aliases: []string{"rm"},
		Short:   "Delete a pod",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			target, err := resolvePod(ctx, client, args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd, fmt.Sprintf("Delete pod %s (%s)?", target.Name, target.ID)) {
				app.printer.Messagef("Aborted.")
				return nil
			}
			if wait.wait {
				err = client.DeletePodAndWait(ctx, target.ID, wait.options())
			} else {
				err = client.DeletePod(ctx, target.ID)
			}
			if err != nil {
				return err
			}
			return app.printer.Success("pod deleted", map[string]any{"id": target.ID})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	wait.register(cmd)
	return cmd
}

func newPodsSSHCommand(app *App) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "ssh <pod>",
		Short: "Open an SSH session to a running pod",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			pod, err := resolvePod(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			line, ok := pod.SSHCommand()
			if !ok {
				return usageError("pod", "pod %s is %s; SSH is only available while running", pod.ID, pod.Status)
			}
			if printOnly || app.jsonOut {
				if app.jsonOut {
					return app.printer.JSON(map[string]any{"id": pod.ID, "command": line})
				}
				_, err := fmt.Fprintln(app.Out, line)
				return err
			}

			ssh := exec.CommandContext(cmd.Context(), "ssh", "-p", strconv.Itoa(pod.SSHPort), "root@"+pod.SSHHost)
			ssh.Stdin = app.In
			ssh.Stdout = app.Out
			ssh.Stderr = app.Err
			return ssh.Run()
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the ssh command instead of running it")
	return cmd
}

func newPodsLogsCommand(app *App) *cobra.Command {
	var opts volt.LogOptions
	cmd := &cobra.Command{
		Use:   "logs <pod>",
		Short: "Print pod logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pod, err := resolvePod(ctx, client, args[0])
			if err != nil {
				return err
			}
			stream, err := client.PodLogs(ctx, pod.ID, opts)
			if err != nil {
				return err
			}
			defer func() { _ = stream.Close() }()

			for line := range stream.LinesWithContext(ctx) {
				if _, err := fmt.Fprintln(app.Out, line); err != nil {
					return err
				}
			}
			return stream.Err()
		},
	}
	cmd.Flags().IntVar(&opts.Tail, "tail", 100, "number of trailing lines")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "stream new lines as they are written")
	return cmd
}

// resolvePod finds a pod by id, HUID or name, in that order. The id is
// looked up directly; the list is only scanned when that lookup misses.
func resolvePod(ctx context.Context, client *volt.Client, ref string) (*volt.Pod, error) {
	pod, err := client.GetPod(ctx, ref)
	if err == nil {
		return pod, nil
	}
	if !errors.Is(err, volt.ErrNotFound) {
		return nil, err
	}

	pods, err := client.ListPods(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pods {
		if pods[i].ID == ref {
			return &pods[i], nil
		}
	}
	for i := range pods {
		if pods[i].HUID() == ref {
			return &pods[i], nil
		}
	}
	var match *volt.Pod
	for i := range pods {
		if pods[i].Name != ref {
			continue
		}
		if match != nil {
			return nil, usageError("pod", "name %q matches more than one pod; use the id", ref)
		}
		match = &pods[i]
	}
	if match != nil {
		return match, nil
	}
	return nil, &volt.Error{Code: volt.CodeNotFound, Message: fmt.Sprintf("pod %q not found", ref), Status: 404}
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, usageError("env", "invalid environment variable %q, expected KEY=VALUE", p)
		}
		env[k] = v
	}
	return env, nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
