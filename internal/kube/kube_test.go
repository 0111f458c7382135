package kube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	testclient "k8s.io/client-go/kubernetes/fake"
)

func newTestPod(name, namespace string, phase corev1.PodPhase, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Status: corev1.PodStatus{Phase: phase},
	}
}

func TestListRunningPods(t *testing.T) {
	require := require.New(t)

	fid := map[string]string{"app": "fid"}
	fakeClient := testclient.NewSimpleClientset(
		newTestPod("fid-1", "fid-prod", corev1.PodRunning, fid),
		newTestPod("fid-0", "fid-prod", corev1.PodRunning, fid),
		newTestPod("fid-2", "fid-prod", corev1.PodPending, fid),
		newTestPod("zk-0", "fid-prod", corev1.PodRunning, map[string]string{"app": "zookeeper"}),
		newTestPod("fid-0", "other", corev1.PodRunning, fid),
	)
	client := newClientWithClientset(fakeClient, nil)

	pods, err := client.ListRunningPods(context.Background(), "fid-prod", "app=fid")
	require.NoError(err)
	require.Equal([]string{"fid-0", "fid-1"}, pods)
}

func TestListRunningPodsEmpty(t *testing.T) {
	client := newClientWithClientset(testclient.NewSimpleClientset(), nil)

	pods, err := client.ListRunningPods(context.Background(), "fid-prod", "app=fid")
	require.NoError(t, err)
	require.Empty(t, pods)
}

func TestPing(t *testing.T) {
	fakeClient := testclient.NewSimpleClientset(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: "fid-prod"},
	})
	client := newClientWithClientset(fakeClient, nil)

	require.NoError(t, client.Ping(context.Background()))
}

func TestExecWithoutRestConfig(t *testing.T) {
	client := newClientWithClientset(testclient.NewSimpleClientset(), nil)

	_, err := client.Exec(context.Background(), "fid-prod", "fid-0", []string{"cat", "/tmp/x"})
	require.Error(t, err)
}
