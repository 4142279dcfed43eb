package k8s

import (
	"fmt"
	"sort"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Client bundles the clients the mirror needs
type Client struct {
	Dynamic    dynamic.Interface
	Metrics    metricsclient.Interface
	RestConfig *rest.Config
	Context    string
}

// NewClient creates clients from a kubeconfig. An empty contextName uses the
// kubeconfig's current context; with no kubeconfig available the in-cluster
// config is tried.
func NewClient(kubeconfigPath, contextName string) (*Client, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules,
		&clientcmd.ConfigOverrides{CurrentContext: contextName},
	)

	config, err := clientConfig.ClientConfig()
	if err != nil {
		// Not configured locally, maybe running in a pod
		inCluster, inErr := rest.InClusterConfig()
		if inErr != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
		config = inCluster
	}

	current := contextName
	if current == "" {
		if raw, err := clientConfig.RawConfig(); err == nil {
			current = raw.CurrentContext
		}
	}

	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	metrics, err := metricsclient.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}

	return &Client{
		Dynamic:    dyn,
		Metrics:    metrics,
		RestConfig: config,
		Context:    current,
	}, nil
}

// GetContexts returns all contexts in the kubeconfig, sorted
func GetContexts(kubeconfigPath string) ([]string, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	config, err := loadingRules.Load()
	if err != nil {
		return nil, err
	}

	contexts := make([]string, 0, len(config.Contexts))
	for name := range config.Contexts {
		contexts = append(contexts, name)
	}
	sort.Strings(contexts)
	return contexts, nil
}
