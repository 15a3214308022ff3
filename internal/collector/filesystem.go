package collector

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"dbwatch/internal/models"

	"golang.org/x/crypto/ssh"
)

// SSHFileSystemCollector runs a df probe over SSH against the host owning
// the filesystem's database entry.
type SSHFileSystemCollector struct {
	Port    int
	Timeout time.Duration
}

func NewSSHFileSystemCollector() *SSHFileSystemCollector {
	return &SSHFileSystemCollector{Port: 22, Timeout: 10 * time.Second}
}

// Collect opens an SSH session, runs `df -m` for the mount path and parses
// the single summary line. Session and connection are closed on every path.
func (c *SSHFileSystemCollector) Collect(ctx context.Context, db *models.Database, fs *models.FileSystem) (*FileSystemUsage, error) {
	config := &ssh.ClientConfig{
		User: db.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(db.Password),
		},
		// Monitored hosts are registered by operators; host keys are not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.Timeout,
	}

	addr := net.JoinHostPort(db.Host, strconv.Itoa(c.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &CollectionError{Target: fs.Path, Err: err}
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.Timeout)
	}
	conn.SetDeadline(deadline)

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, &CollectionError{Target: fs.Path, Err: err}
	}
	client := ssh.NewClient(clientConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, &CollectionError{Target: fs.Path, Err: err}
	}
	defer session.Close()

	output, err := session.Output(fmt.Sprintf("df -m %s | tail -n 1", fs.Path))
	if err != nil {
		return nil, &CollectionError{Target: fs.Path, Err: err}
	}

	usage, err := ParseDFLine(string(output))
	if err != nil {
		return nil, &CollectionError{Target: fs.Path, Err: err}
	}

	return usage, nil
}

// ParseDFLine parses one `df -m` summary line:
// Filesystem 1M-blocks Used Available Use% Mounted-on
func ParseDFLine(line string) (*FileSystemUsage, error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) < 5 {
		return nil, fmt.Errorf("invalid df output: %q", line)
	}

	total, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid df total %q: %w", parts[1], err)
	}
	used, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("invalid df used %q: %w", parts[2], err)
	}
	available, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, fmt.Errorf("invalid df available %q: %w", parts[3], err)
	}
	percent, err := strconv.ParseFloat(strings.TrimSuffix(parts[4], "%"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid df use%% %q: %w", parts[4], err)
	}

	return &FileSystemUsage{
		TotalMB:     total,
		UsedMB:      used,
		AvailableMB: available,
		UsedPercent: percent,
	}, nil
}
