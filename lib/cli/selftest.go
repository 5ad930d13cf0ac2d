package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/go-i2p/go-cbcservice/lib/client"
	"github.com/go-i2p/go-cbcservice/lib/config"
	"github.com/go-i2p/go-cbcservice/lib/dispatch"
	"github.com/go-i2p/go-cbcservice/lib/mailbox"
	"github.com/go-i2p/go-cbcservice/lib/service"
	"github.com/go-i2p/go-cbcservice/lib/session"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NIST SP 800-38A, F.2.5 CBC-AES256.Encrypt.
var (
	vectorKey    = mustHex("603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4")
	vectorIV     = mustHex("000102030405060708090a0b0c0d0e0f")
	vectorPlain  = mustHex("6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e5130c81c46a35ce411e5fbc1191a0a52eff69f2445df4f9b17ad2b417be66c3710")
	vectorCipher = mustHex("f58c4c04d6e5f1ba779eabfb5f7bfbd69cfc4e967edb808d679f777bc6702c7d39f23369a9d9bacfa530e26304231461b2eb05e2c39be9fcda6c19078c6a9d1b")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func selftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the NIST CBC-AES256 vector through an in-process service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest(cmd.Context(), cmd.OutOrStdout(), config.CurrentConfig().Client.Timeout)
		},
	}
}

// runSelftest encrypts and decrypts the vector over a private service and
// reports each check on out.
func runSelftest(ctx context.Context, out io.Writer, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	table, err := session.NewTable(1)
	if err != nil {
		return err
	}
	mb := mailbox.New(4)
	defer mb.Close()
	svc := service.New(mb, dispatch.New(table, nil), service.Config{}, nil)
	go svc.Run(ctx)

	ep, err := mb.Open(1)
	if err != nil {
		return err
	}
	c := client.New(ep, client.WithTimeout(timeout))
	defer c.Close()

	var key [32]byte
	var iv, lastIV [16]byte
	copy(key[:], vectorKey)
	copy(iv[:], vectorIV)
	copy(lastIV[:], vectorCipher[32:48])

	checks := []struct {
		name     string
		iv       [16]byte
		op       string
		in, want []byte
	}{
		{"encrypt", iv, "encrypt", vectorPlain, vectorCipher},
		{"decrypt", iv, "decrypt", vectorCipher, vectorPlain},
		{"encrypt block 4", lastIV, "encrypt", vectorPlain[48:], vectorCipher[48:]},
	}

	for _, check := range checks {
		got, err := runChain(ctx, c, key, check.iv, check.op, check.in)
		if err != nil {
			return oops.Wrapf(err, "selftest %s", check.name)
		}
		if !bytes.Equal(got, check.want) {
			fmt.Fprintf(out, "%-16s FAIL\n", check.name)
			return oops.Errorf("selftest %s: got %x, want %x", check.name, got, check.want)
		}
		fmt.Fprintf(out, "%-16s ok\n", check.name)
	}
	return nil
}

// runChain pushes in through one session block by block.
func runChain(ctx context.Context, c *client.Client, key [32]byte, iv [16]byte, op string, in []byte) ([]byte, error) {
	s, err := c.Init(ctx, key, iv)
	if err != nil {
		return nil, err
	}

	var result []byte
	for off := 0; off < len(in); off += 16 {
		var block, res [16]byte
		copy(block[:], in[off:off+16])
		if op == "encrypt" {
			res, err = s.Encrypt(ctx, block)
		} else {
			res, err = s.Decrypt(ctx, block)
		}
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		result = append(result, res[:]...)
	}
	return result, s.Close(ctx)
}
