package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/loganmanery/cryptopack/internal/config"
	"github.com/loganmanery/cryptopack/internal/logging"
	"github.com/loganmanery/cryptopack/pkg/vault"
)

func cmdVault(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath, dbPath string
	fs.StringVar(&configPath, "config", "", "Config file (default ~/.cryptopack/config.yaml)")
	fs.StringVar(&dbPath, "db", "", "Vault database path, overrides the config")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: cryptopack vault [-config <file>] [-db <path>] <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: register, login, passwd, rmuser, users, newkey, keys, pubkey, sign, verify, rmkey, audit, stats")
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "logging: %v\n", err)
		return 1
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		fmt.Fprintf(errOut, "create vault directory: %v\n", err)
		return 1
	}

	v := vault.New(cfg.DBPath,
		vault.WithLogger(logger),
		vault.WithKeyBits(cfg.KeyBits),
		vault.WithAuthRateLimit(cfg.AuthRate, cfg.AuthBurst),
	)
	if err := v.Initialize(); err != nil {
		fmt.Fprintf(errOut, "open vault: %v\n", err)
		return 1
	}
	defer v.Close()

	sub, rest := fs.Arg(0), fs.Args()[1:]
	switch sub {
	case "register":
		return vaultRegister(v, rest, out, errOut)
	case "login":
		return vaultLogin(v, rest, out, errOut)
	case "passwd":
		return vaultPasswd(v, rest, out, errOut)
	case "rmuser":
		return vaultRemoveUser(v, rest, out, errOut)
	case "users":
		return vaultUsers(v, out, errOut)
	case "newkey":
		return vaultNewKey(v, rest, out, errOut)
	case "keys":
		return vaultKeys(v, out, errOut)
	case "pubkey":
		return vaultPubKey(v, rest, out, errOut)
	case "sign":
		return vaultSign(v, rest, out, errOut)
	case "verify":
		return vaultVerify(v, rest, out, errOut)
	case "rmkey":
		return vaultRemoveKey(v, rest, out, errOut)
	case "audit":
		return vaultAudit(v, rest, out, errOut)
	case "stats":
		return vaultStats(v, out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown vault subcommand: %s\n", sub)
		return 2
	}
}

func vaultRegister(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault register", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var user, password string
	fs.StringVar(&user, "user", "", "Username")
	fs.StringVar(&password, "password", "", "Password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if user == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault register -user <name> [-password <pw>]")
		return 2
	}

	password, err := secretOrPrompt(password, "Password: ", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "read password: %v\n", err)
		return 1
	}
	if err := v.Register(user, password); err != nil {
		fmt.Fprintf(errOut, "register: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "registered")
	return 0
}

func vaultLogin(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault login", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var user, password string
	fs.StringVar(&user, "user", "", "Username")
	fs.StringVar(&password, "password", "", "Password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if user == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault login -user <name> [-password <pw>]")
		return 2
	}

	password, err := secretOrPrompt(password, "Password: ", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "read password: %v\n", err)
		return 1
	}

	err = v.Authenticate(user, password)
	switch {
	case err == nil:
		_, _ = fmt.Fprintln(out, "authenticated")
		return 0
	case errors.Is(err, vault.ErrInvalidCredentials), errors.Is(err, vault.ErrTooManyAttempts):
		_, _ = fmt.Fprintln(out, err)
		return 1
	default:
		fmt.Fprintf(errOut, "login: %v\n", err)
		return 1
	}
}

func vaultPasswd(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault passwd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var user, oldPassword, newPassword string
	fs.StringVar(&user, "user", "", "Username")
	fs.StringVar(&oldPassword, "password", "", "Current password (prompted when omitted)")
	fs.StringVar(&newPassword, "new-password", "", "New password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if user == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault passwd -user <name> [-password <pw>] [-new-password <pw>]")
		return 2
	}

	oldPassword, err := secretOrPrompt(oldPassword, "Current password: ", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "read password: %v\n", err)
		return 1
	}
	newPassword, err = secretOrPrompt(newPassword, "New password: ", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "read password: %v\n", err)
		return 1
	}

	if err := v.ChangePassword(user, oldPassword, newPassword); err != nil {
		fmt.Fprintf(errOut, "passwd: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "password changed")
	return 0
}

func vaultRemoveUser(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault rmuser", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var user string
	fs.StringVar(&user, "user", "", "Username")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if user == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault rmuser -user <name>")
		return 2
	}

	if err := v.RemoveUser(user); err != nil {
		fmt.Fprintf(errOut, "rmuser: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "removed")
	return 0
}

func vaultUsers(v *vault.Vault, out io.Writer, errOut io.Writer) int {
	users, err := v.Users()
	if err != nil {
		fmt.Fprintf(errOut, "users: %v\n", err)
		return 1
	}
	for _, u := range users {
		_, _ = fmt.Fprintln(out, u)
	}
	return 0
}

func vaultNewKey(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault newkey", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name, passphrase string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&passphrase, "passphrase", "", "Passphrase protecting the private key (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault newkey -name <name> [-passphrase <pp>]")
		return 2
	}

	passphrase, err := secretOrPrompt(passphrase, "Passphrase: ", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "read passphrase: %v\n", err)
		return 1
	}

	rec, err := v.CreateSigningKey(name, passphrase)
	if err != nil {
		fmt.Fprintf(errOut, "newkey: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, rec.KeyID)
	return 0
}

func vaultKeys(v *vault.Vault, out io.Writer, errOut io.Writer) int {
	keys, err := v.Keys()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "%-20s %s %s\n", truncateString(k.Name, 20), k.KeyID, k.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return 0
}

func vaultPubKey(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault pubkey", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name string
	fs.StringVar(&name, "name", "", "Key name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault pubkey -name <name>")
		return 2
	}

	pub, err := v.PublicKey(name)
	if err != nil {
		fmt.Fprintf(errOut, "pubkey: %v\n", err)
		return 1
	}
	b, err := json.Marshal(pub)
	if err != nil {
		fmt.Fprintf(errOut, "encode key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, string(b))
	return 0
}

func vaultSign(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name, passphrase, data, file string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&passphrase, "passphrase", "", "Key passphrase (prompted when omitted)")
	fs.StringVar(&data, "data", "", "Text to sign (UTF-16LE)")
	fs.StringVar(&file, "file", "", "File whose bytes are signed")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault sign -name <name> [-passphrase <pp>] (-data <text> | -file <path>)")
		return 2
	}

	text, raw, isText, err := dataOrFile(data, file)
	if err != nil {
		fmt.Fprintf(errOut, "input: %v\n", err)
		return 2
	}
	passphrase, err = secretOrPrompt(passphrase, "Passphrase: ", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "read passphrase: %v\n", err)
		return 1
	}

	var sig string
	if isText {
		sig, err = v.SignString(name, passphrase, text)
	} else {
		sig, err = v.Sign(name, passphrase, raw)
	}
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, sig)
	return 0
}

func vaultVerify(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name, sig, data, file string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&sig, "sig", "", "Hex signature")
	fs.StringVar(&data, "data", "", "Signed text (UTF-16LE)")
	fs.StringVar(&file, "file", "", "Signed file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" || sig == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault verify -name <name> -sig <hex> (-data <text> | -file <path>)")
		return 2
	}

	text, raw, isText, err := dataOrFile(data, file)
	if err != nil {
		fmt.Fprintf(errOut, "input: %v\n", err)
		return 2
	}

	var ok bool
	if isText {
		ok, err = v.VerifyString(name, text, sig)
	} else {
		ok, err = v.Verify(name, raw, sig)
	}
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}
	return printCheck(out, ok, "valid", "invalid")
}

func vaultRemoveKey(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault rmkey", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name string
	fs.StringVar(&name, "name", "", "Key name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "usage: cryptopack vault rmkey -name <name>")
		return 2
	}

	if err := v.RemoveKey(name); err != nil {
		fmt.Fprintf(errOut, "rmkey: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "removed")
	return 0
}

func vaultAudit(v *vault.Vault, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault audit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var limit int
	fs.IntVar(&limit, "limit", 20, "Number of entries, 0 for all")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	entries, err := v.Audit(limit)
	if err != nil {
		fmt.Fprintf(errOut, "audit: %v\n", err)
		return 1
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(out, "%s  %-16s %-20s %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, truncateString(e.Subject, 20), e.Details)
	}
	return 0
}

// vaultStats prints audit totals by action, then the counters of this process
func vaultStats(v *vault.Vault, out io.Writer, errOut io.Writer) int {
	entries, err := v.Audit(0)
	if err != nil {
		fmt.Fprintf(errOut, "stats: %v\n", err)
		return 1
	}
	byAction := make(map[string]int)
	for _, e := range entries {
		byAction[e.Action]++
	}
	for _, action := range sortedKeys(byAction) {
		_, _ = fmt.Fprintf(out, "audit %s %d\n", action, byAction[action])
	}

	snap, err := v.Metrics()
	if err != nil {
		fmt.Fprintf(errOut, "stats: %v\n", err)
		return 1
	}
	for _, name := range sortedKeys(snap) {
		_, _ = fmt.Fprintf(out, "%s %g\n", name, snap[name])
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncateString truncates a string to at most maxLen runes
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
