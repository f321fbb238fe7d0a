package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	input := "\ufeffName,Category,Github,License\n" +
		"PyTorch,Training,https://github.com/pytorch/pytorch,BSD\n" +
		"Weights & Biases,Tracking,,Proprietary\n" +
		",Serving,https://github.com/bentoml/BentoML,Apache\n" +
		"MLflow,Tracking,https://github.com/mlflow/mlflow/,Apache\n" +
		"\"Kubeflow, Pipelines\",Orchestration,https://github.com/kubeflow/pipelines,Apache\n" +
		"PyTorch,Training,https://github.com/pytorch/pytorch-new,BSD\n"

	repos, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, []Repository{
		{
			Name:            "PyTorch",
			SourceURL:       "https://github.com/pytorch/pytorch-new",
			ContributorsURL: "https://github.com/pytorch/pytorch-new/graphs/contributors",
		},
		{
			Name:            "MLflow",
			SourceURL:       "https://github.com/mlflow/mlflow/",
			ContributorsURL: "https://github.com/mlflow/mlflow/graphs/contributors",
		},
		{
			Name:            "Kubeflow, Pipelines",
			SourceURL:       "https://github.com/kubeflow/pipelines",
			ContributorsURL: "https://github.com/kubeflow/pipelines/graphs/contributors",
		},
	}, repos)
}

func TestReadMissingColumn(t *testing.T) {
	testCases := []string{
		"Name,Website\nPyTorch,https://pytorch.org\n",
		"Tool,Github\nPyTorch,https://github.com/pytorch/pytorch\n",
		"",
	}
	for _, input := range testCases {
		_, err := Read(strings.NewReader(input))
		require.Error(t, err)
	}
}

func TestReadShortRows(t *testing.T) {
	input := "Name,Github\nPyTorch\nMLflow,https://github.com/mlflow/mlflow\n"
	repos, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, repos, 1)
	require.Equal(t, "MLflow", repos[0].Name)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.csv")
	err := os.WriteFile(path, []byte("Name,Github\nDVC,https://github.com/iterative/dvc\n"), 0600)
	if err != nil {
		t.Fatal(err)
	}

	repos, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, repos, 1)
	require.Equal(t, "https://github.com/iterative/dvc/graphs/contributors", repos[0].ContributorsURL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
