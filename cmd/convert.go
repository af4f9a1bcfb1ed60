package cmd

import (
	"fmt"
	"io"
	"log"

	"github.com/jaffee/commandeer/cobrafy"
	"github.com/learnedindex/skewtools"
	"github.com/learnedindex/skewtools/workload"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewConvertCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	conv := &ConvertCommand{}
	com, err := cobrafy.Command(conv)
	if err != nil {
		panic(fmt.Sprintf("Couldn't create cobra command: %v", err))
	}
	com.Use = "convert"
	com.Short = "Convert a text workload to the binary format."
	com.Long = `Converts a whitespace separated text workload to little-endian int64.

".txt" is appended to the input name when it is missing. Integers are
kept exactly; other numbers are truncated toward zero.
`
	com.RunE = func(cmd *cobra.Command, args []string) error {
		conv.Logger = newNotepad(cmd, stderr).INFO
		return conv.Run()
	}
	return com
}

// ConvertCommand converts one text workload.
type ConvertCommand struct {
	Input  string `help:"Text workload to read." short:"i"`
	Output string `help:"Binary workload to write." short:"o"`

	Logger *log.Logger `flag:"-"`
}

func (c *ConvertCommand) Run() error {
	if c.Input == "" || c.Output == "" {
		return errors.Wrap(skewtools.ErrInvalidParameter, "both input and output are required")
	}
	n, err := workload.ConvertText(appFs, c.Input, c.Output)
	if err != nil {
		return err
	}
	if c.Logger != nil {
		c.Logger.Printf("converted %d queries from %s to %s", n, workload.TextPath(c.Input), c.Output)
	}
	return nil
}

func init() {
	subcommandFns["convert"] = NewConvertCommand
}
