package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// openWhenReady 等 server 真的開始監聽後，用系統瀏覽器打開 /dev 工具頁。
func openWhenReady(addr string) {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	if err := waitForTCP(host, 5*time.Second); err != nil {
		fmt.Fprintln(os.Stderr, "dev server not ready:", err)
		return
	}
	if err := openBrowser("http://" + host + "/dev"); err != nil {
		fmt.Fprintln(os.Stderr, "open browser failed:", err)
	}
}

func waitForTCP(host string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", host, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", host)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
