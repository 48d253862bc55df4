// Package wallet 管理本地凭据文件 wallet_data.txt：启动时读取私钥与钱包地址，
// 缺失或损坏时回退到环境变量或生成新私钥，钱包初始化完成后回写当前值。
package wallet
