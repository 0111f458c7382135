// Package kube wraps the Kubernetes API calls used to collect logs from pods.
package kube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/remotecommand"
)

const userAgent = "log-archiver"

// ErrAPIUnavailable is returned by Ping when the API server cannot be queried.
var ErrAPIUnavailable = errors.New("kubernetes API unavailable")

// Client is the subset of the Kubernetes API the collector needs.
type Client interface {
	// Ping verifies the API server answers.
	Ping(ctx context.Context) error

	// ListRunningPods returns the sorted names of Running pods in namespace
	// matching the label selector.
	ListRunningPods(ctx context.Context, namespace, selector string) ([]string, error)

	// Exec runs argv in the pod's default container and returns combined
	// stdout and stderr.
	Exec(ctx context.Context, namespace, pod string, argv []string) ([]byte, error)
}

// APIClient implements Client on top of client-go.
type APIClient struct {
	kubeClient kubernetes.Interface
	restConfig *rest.Config
	log        *slog.Logger
}

// NewClient loads the kubeconfig at configPath and builds a client.
func NewClient(configPath string) (*APIClient, error) {
	kubeConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: configPath},
		&clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("error creating kube config: %w", err)
	}
	kubeConfig = rest.AddUserAgent(kubeConfig, userAgent)

	kubeClient, err := kubernetes.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating kube client: %w", err)
	}

	return newClientWithClientset(kubeClient, kubeConfig), nil
}

// newClientWithClientset returns a client over an existing clientset.
// restConfig may be nil when Exec is not used.
func newClientWithClientset(kubeClient kubernetes.Interface, restConfig *rest.Config) *APIClient {
	return &APIClient{
		kubeClient: kubeClient,
		restConfig: restConfig,
		log:        slog.With("component", "kube"),
	}
}

// Ping lists namespaces to confirm the API server is reachable.
func (c *APIClient) Ping(ctx context.Context) error {
	if _, err := c.kubeClient.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1}); err != nil {
		return fmt.Errorf("%w: %v", ErrAPIUnavailable, err)
	}
	return nil
}

// ListRunningPods returns Running pods matching selector.
func (c *APIClient) ListRunningPods(ctx context.Context, namespace, selector string) ([]string, error) {
	pods, err := c.kubeClient.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods in %s: %w", namespace, err)
	}

	var names []string
	for _, pod := range pods.Items {
		if pod.Status.Phase != corev1.PodRunning {
			continue
		}
		names = append(names, pod.Name)
	}
	sort.Strings(names)

	c.log.Debug("listed pods", "namespace", namespace, "selector", selector, "running", len(names))
	return names, nil
}

// Exec runs argv inside pod over SPDY.
func (c *APIClient) Exec(ctx context.Context, namespace, pod string, argv []string) ([]byte, error) {
	if c.restConfig == nil {
		return nil, fmt.Errorf("exec in %s/%s: no rest config", namespace, pod)
	}

	req := c.kubeClient.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Command: argv,
			Stdout:  true,
			Stderr:  true,
		}, scheme.ParameterCodec)

	exec, err := remotecommand.NewSPDYExecutor(c.restConfig, "POST", req.URL())
	if err != nil {
		return nil, fmt.Errorf("create executor for %s/%s: %w", namespace, pod, err)
	}

	out := &lockedBuffer{}
	err = exec.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: out,
		Stderr: out,
	})
	if err != nil {
		return out.Bytes(), fmt.Errorf("exec %v in %s/%s: %w", argv, namespace, pod, err)
	}
	return out.Bytes(), nil
}

// lockedBuffer lets stdout and stderr share one buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

var (
	_ Client    = (*APIClient)(nil)
	_ io.Writer = (*lockedBuffer)(nil)
)
