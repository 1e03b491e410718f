package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Subcommands 是 CLI.Run 支持的子命令
var Subcommands = []string{"up", "down", "steps", "status", "version", "info", "force"}

// CLI 把迁移子命令翻译成 Migrator 调用并打印结果
type CLI struct {
	m   Migrator
	out io.Writer
}

// NewCLI 创建 CLI，输出写到 out
func NewCLI(m Migrator, out io.Writer) *CLI {
	return &CLI{m: m, out: out}
}

// Run 执行 args[0] 指定的子命令，其余参数为子命令参数
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required (%s)", strings.Join(Subcommands, ", "))
	}

	switch strings.ToLower(args[0]) {
	case "up":
		fmt.Fprintln(c.out, "Applying generated_models migrations...")
		return c.apply(ctx, "up", c.m.Up)
	case "down":
		fmt.Fprintln(c.out, "Rolling back last migration...")
		return c.apply(ctx, "down", c.m.Down)
	case "steps":
		n, err := intArg(args, "steps")
		if err != nil {
			return err
		}
		return c.apply(ctx, "steps", func(ctx context.Context) error { return c.m.Steps(ctx, n) })
	case "force":
		v, err := intArg(args, "force")
		if err != nil {
			return err
		}
		if err := c.m.Force(ctx, v); err != nil {
			return fmt.Errorf("force: %w", err)
		}
		fmt.Fprintf(c.out, "Version forced to %d\n", v)
		return nil
	case "version":
		return c.version(ctx)
	case "status":
		return c.status(ctx)
	case "info":
		return c.info(ctx)
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

// apply 执行变更并报告新版本
func (c *CLI) apply(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	v, dirty, err := c.m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Current version: %s\n", versionLabel(v, dirty))
	return nil
}

func (c *CLI) version(ctx context.Context) error {
	v, dirty, err := c.m.Version(ctx)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	if v == 0 {
		fmt.Fprintln(c.out, "No migrations applied yet.")
		return nil
	}
	fmt.Fprintf(c.out, "Current version: %s\n", versionLabel(v, dirty))
	return nil
}

func (c *CLI) status(ctx context.Context) error {
	statuses, err := c.m.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	var applied int
	for _, s := range statuses {
		state := "pending"
		switch {
		case s.Dirty:
			state = "dirty"
		case s.Applied:
			state = "applied"
			applied++
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\n%d of %d applied\n", applied, len(statuses))
	return nil
}

func (c *CLI) info(ctx context.Context) error {
	info, err := c.m.Info(ctx)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "current\t%s\n", versionLabel(info.CurrentVersion, info.Dirty))
	fmt.Fprintf(tw, "total\t%d\n", info.TotalMigrations)
	fmt.Fprintf(tw, "applied\t%d\n", info.AppliedMigrations)
	fmt.Fprintf(tw, "pending\t%d\n", info.PendingMigrations)
	return tw.Flush()
}

func versionLabel(v uint, dirty bool) string {
	if dirty {
		return fmt.Sprintf("%d (dirty)", v)
	}
	return strconv.FormatUint(uint64(v), 10)
}

func intArg(args []string, name string) (int, error) {
	if len(args) < 2 {
		return 0, errors.New(name + " requires a number")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, args[1])
	}
	return n, nil
}
